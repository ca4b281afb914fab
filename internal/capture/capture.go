// Package capture turns an offline packet capture into length-framed
// Tibia messages. TCP streams are reassembled per direction and cut at
// the u16 length prefix; each message carries the number of the captured
// packet that completed it.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/tcpassembly"

	"github.com/udisondev/tibiago/internal/constants"
)

// Message is one reassembled message, length prefix included.
type Message struct {
	Frame     uint32
	Timestamp time.Time
	Src       netip.AddrPort
	Dst       netip.AddrPort
	Data      []byte
}

// Stats counts what the reader saw.
type Stats struct {
	Packets     int
	TCPSegments int
	Messages    int
}

// flushInterval is how often, in capture time, streams that lost their
// beginning are forced forward.
const flushInterval = 2 * time.Second

// ReadFile reads a pcap or pcapng file and calls emit for every message on
// the given ports, in capture order. An empty port list accepts all TCP.
func ReadFile(ctx context.Context, path string, ports []uint16, emit func(Message) error) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	return Read(ctx, f, ports, emit)
}

// Read is ReadFile for an already open capture.
func Read(ctx context.Context, r io.Reader, ports []uint16, emit func(Message) error) (Stats, error) {
	src, linkType, err := openSource(r)
	if err != nil {
		return Stats{}, err
	}

	rd := newReader(ports)
	packets := gopacket.NewPacketSource(src, linkType)
	packets.Lazy = true

	var lastFlush time.Time
	for {
		if err := ctx.Err(); err != nil {
			return rd.stats, err
		}

		pkt, err := packets.NextPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rd.stats, fmt.Errorf("reading packet %d: %w", rd.stats.Packets+1, err)
		}

		rd.stats.Packets++
		rd.frame = uint32(rd.stats.Packets)
		ts := pkt.Metadata().Timestamp
		rd.assemble(pkt, ts)

		if ts.Sub(lastFlush) > flushInterval {
			cutoff := ts.Add(-flushInterval)
			rd.assembler.FlushWithOptions(tcpassembly.FlushOptions{T: cutoff})
			rd.forget(cutoff)
			lastFlush = ts
		}
		if err := rd.drain(emit); err != nil {
			return rd.stats, err
		}
	}

	rd.assembler.FlushAll()
	return rd.stats, rd.drain(emit)
}

func openSource(r io.Reader) (gopacket.PacketDataSource, layers.LinkType, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, 0, fmt.Errorf("reading capture header: %w", err)
	}

	// pcapng section header block type
	if binary.BigEndian.Uint32(magic) == 0x0A0D0D0A {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, fmt.Errorf("opening pcapng: %w", err)
		}
		return ng, ng.LinkType(), nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, 0, fmt.Errorf("opening pcap: %w", err)
	}
	return pr, pr.LinkType(), nil
}

// reader owns the assembler. Streams run synchronously inside
// AssembleWithTimestamp and queue messages on pending.
type reader struct {
	ports     map[uint16]bool
	assembler *tcpassembly.Assembler
	frame     uint32
	ts        time.Time
	pending   []Message
	stats     Stats

	// frames maps a segment timestamp to the last frame seen with it, so
	// data released by a flush keeps the frame that carried it.
	frames map[int64]uint32
}

func newReader(ports []uint16) *reader {
	rd := &reader{
		ports:  make(map[uint16]bool, len(ports)),
		frames: make(map[int64]uint32),
	}
	for _, p := range ports {
		rd.ports[p] = true
	}
	rd.assembler = tcpassembly.NewAssembler(tcpassembly.NewStreamPool(rd))
	rd.assembler.MaxBufferedPagesPerConnection = 64
	return rd
}

func (rd *reader) wanted(tcp *layers.TCP) bool {
	if len(rd.ports) == 0 {
		return true
	}
	return rd.ports[uint16(tcp.SrcPort)] || rd.ports[uint16(tcp.DstPort)]
}

func (rd *reader) assemble(pkt gopacket.Packet, ts time.Time) {
	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return
	}
	tcp := tcpLayer.(*layers.TCP)
	if !rd.wanted(tcp) {
		return
	}
	netLayer := pkt.NetworkLayer()
	if netLayer == nil {
		return
	}

	rd.stats.TCPSegments++
	rd.ts = ts
	rd.frames[ts.UnixNano()] = rd.frame
	rd.assembler.AssembleWithTimestamp(netLayer.NetworkFlow(), tcp, ts)
}

// frameAt returns the frame of the segment seen at ts, or the current
// frame when it is no longer known.
func (rd *reader) frameAt(ts time.Time) uint32 {
	if f, ok := rd.frames[ts.UnixNano()]; ok {
		return f
	}
	return rd.frame
}

// forget drops timestamps older than cutoff. A flush at cutoff has
// released every page seen before it.
func (rd *reader) forget(cutoff time.Time) {
	limit := cutoff.UnixNano()
	for k := range rd.frames {
		if k < limit {
			delete(rd.frames, k)
		}
	}
}

func (rd *reader) drain(emit func(Message) error) error {
	for i, msg := range rd.pending {
		if err := emit(msg); err != nil {
			rd.pending = rd.pending[i+1:]
			return err
		}
	}
	rd.pending = rd.pending[:0]
	return nil
}

// New implements tcpassembly.StreamFactory.
func (rd *reader) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	s := &stream{
		rd:  rd,
		src: endpoint(netFlow.Src(), tcpFlow.Src()),
		dst: endpoint(netFlow.Dst(), tcpFlow.Dst()),
	}
	slog.Debug("new TCP stream", "src", s.src, "dst", s.dst)
	return s
}

func endpoint(host, port gopacket.Endpoint) netip.AddrPort {
	addr, _ := netip.AddrFromSlice(host.Raw())
	var p uint16
	if raw := port.Raw(); len(raw) == 2 {
		p = binary.BigEndian.Uint16(raw)
	}
	return netip.AddrPortFrom(addr.Unmap(), p)
}

// stream frames one direction of a TCP connection.
type stream struct {
	rd       *reader
	src, dst netip.AddrPort
	buf      []byte
	// marks[i] covers buf up to marks[i].end, in order.
	marks []mark
}

// mark records which captured packet delivered a run of stream bytes.
type mark struct {
	end   int
	frame uint32
	seen  time.Time
}

func (s *stream) Reassembled(rs []tcpassembly.Reassembly) {
	for _, r := range rs {
		if r.Skip != 0 && len(s.buf) > 0 {
			// Lost bytes: whatever was buffered can no longer be framed.
			slog.Debug("dropping partial message after gap",
				"src", s.src,
				"dst", s.dst,
				"buffered", len(s.buf),
				"skipped", r.Skip)
			s.buf = s.buf[:0]
			s.marks = s.marks[:0]
		}
		if len(r.Bytes) == 0 {
			continue
		}
		s.buf = append(s.buf, r.Bytes...)
		s.marks = append(s.marks, mark{end: len(s.buf), frame: s.rd.frameAt(r.Seen), seen: r.Seen})
	}

	for len(s.buf) >= constants.PacketHeaderSize {
		n := int(binary.LittleEndian.Uint16(s.buf)) + constants.PacketHeaderSize
		if len(s.buf) < n {
			break
		}
		last := s.markAt(n)
		s.rd.pending = append(s.rd.pending, Message{
			Frame:     last.frame,
			Timestamp: last.seen,
			Src:       s.src,
			Dst:       s.dst,
			Data:      bytes.Clone(s.buf[:n]),
		})
		s.rd.stats.Messages++
		s.buf = s.buf[n:]
		s.consume(n)
	}
	if len(s.buf) == 0 {
		s.buf = nil
		s.marks = nil
	}
}

// markAt returns the mark of the packet that delivered byte n-1.
func (s *stream) markAt(n int) mark {
	for _, m := range s.marks {
		if m.end >= n {
			return m
		}
	}
	return mark{frame: s.rd.frame, seen: s.rd.ts}
}

func (s *stream) consume(n int) {
	i := 0
	for i < len(s.marks) && s.marks[i].end <= n {
		i++
	}
	s.marks = s.marks[i:]
	for j := range s.marks {
		s.marks[j].end -= n
	}
}

func (s *stream) ReassemblyComplete() {
	if len(s.buf) > 0 {
		slog.Debug("stream closed with partial message",
			"src", s.src,
			"dst", s.dst,
			"buffered", len(s.buf))
	}
}
