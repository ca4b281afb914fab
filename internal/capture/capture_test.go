package capture

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tibiago/internal/testutil"
)

var (
	clientAddr = netip.MustParseAddrPort("192.168.1.10:51000")
	serverAddr = netip.MustParseAddrPort("10.0.0.1:7171")
)

// pcapBuilder пишет синтетический pcap с одним TCP-соединением.
type pcapBuilder struct {
	t   *testing.T
	buf bytes.Buffer
	w   *pcapgo.Writer
	ts  time.Time
	seq map[netip.AddrPort]uint32
}

func newPcapBuilder(t *testing.T) *pcapBuilder {
	t.Helper()

	b := &pcapBuilder{
		t:   t,
		ts:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		seq: map[netip.AddrPort]uint32{clientAddr: 1000, serverAddr: 5000},
	}
	b.w = pcapgo.NewWriter(&b.buf)
	require.NoError(t, b.w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	return b
}

func (b *pcapBuilder) segment(src, dst netip.AddrPort, syn bool, payload []byte) {
	b.t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src.Addr().AsSlice(),
		DstIP:    dst.Addr().AsSlice(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port()),
		DstPort: layers.TCPPort(dst.Port()),
		Seq:     b.seq[src],
		SYN:     syn,
		ACK:     !syn,
		Window:  65535,
	}
	require.NoError(b.t, tcp.SetNetworkLayerForChecksum(ip))

	if syn {
		b.seq[src]++
	}
	b.seq[src] += uint32(len(payload))

	out := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(b.t, gopacket.SerializeLayers(out, opts, eth, ip, tcp, gopacket.Payload(payload)))

	b.ts = b.ts.Add(10 * time.Millisecond)
	data := out.Bytes()
	require.NoError(b.t, b.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     b.ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data))
}

func (b *pcapBuilder) handshake() {
	b.segment(clientAddr, serverAddr, true, nil)
	b.segment(serverAddr, clientAddr, true, nil)
}

func collect(t *testing.T, data []byte, ports []uint16) ([]Message, Stats) {
	t.Helper()

	var msgs []Message
	stats, err := Read(testutil.ContextWithTimeout(t, 5*time.Second), bytes.NewReader(data), ports, func(m Message) error {
		msgs = append(msgs, m)
		return nil
	})
	require.NoError(t, err)
	return msgs, stats
}

func TestRead_FramesMessages(t *testing.T) {
	b := newPcapBuilder(t)
	b.handshake() // frames 1, 2
	// 3 starts a message, 4 completes it.
	b.segment(clientAddr, serverAddr, false, []byte{0x03, 0x00, 0xAA})
	b.segment(clientAddr, serverAddr, false, []byte{0xBB, 0xCC})
	// 5 carries two messages.
	b.segment(serverAddr, clientAddr, false, []byte{0x01, 0x00, 0x1E, 0x01, 0x00, 0x1F})
	// 6 leaves half a length prefix behind.
	b.segment(clientAddr, serverAddr, false, []byte{0x02})

	msgs, stats := collect(t, b.buf.Bytes(), []uint16{7171})

	require.Len(t, msgs, 3)

	assert.Equal(t, uint32(4), msgs[0].Frame)
	assert.Equal(t, clientAddr, msgs[0].Src)
	assert.Equal(t, serverAddr, msgs[0].Dst)
	assert.Equal(t, []byte{0x03, 0x00, 0xAA, 0xBB, 0xCC}, msgs[0].Data)

	assert.Equal(t, uint32(5), msgs[1].Frame)
	assert.Equal(t, serverAddr, msgs[1].Src)
	assert.Equal(t, []byte{0x01, 0x00, 0x1E}, msgs[1].Data)
	assert.Equal(t, uint32(5), msgs[2].Frame)
	assert.Equal(t, []byte{0x01, 0x00, 0x1F}, msgs[2].Data)

	assert.Equal(t, 6, stats.Packets)
	assert.Equal(t, 6, stats.TCPSegments)
	assert.Equal(t, 3, stats.Messages)
}

func TestRead_PortFilter(t *testing.T) {
	b := newPcapBuilder(t)
	b.handshake()
	b.segment(clientAddr, serverAddr, false, []byte{0x01, 0x00, 0x1E})

	msgs, stats := collect(t, b.buf.Bytes(), []uint16{7172})
	assert.Empty(t, msgs)
	assert.Equal(t, 3, stats.Packets)
	assert.Equal(t, 0, stats.TCPSegments)

	msgs, _ = collect(t, b.buf.Bytes(), nil)
	assert.Len(t, msgs, 1)
}

func TestRead_EmitError(t *testing.T) {
	b := newPcapBuilder(t)
	b.handshake()
	b.segment(clientAddr, serverAddr, false, []byte{0x01, 0x00, 0x1E})

	stop := errors.New("stop")
	_, err := Read(context.Background(), bytes.NewReader(b.buf.Bytes()), nil, func(Message) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}

func TestRead_Cancelled(t *testing.T) {
	b := newPcapBuilder(t)
	b.handshake()

	_, err := Read(testutil.CancelledContext(t), bytes.NewReader(b.buf.Bytes()), nil, func(Message) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRead_NotACapture(t *testing.T) {
	_, err := Read(context.Background(), bytes.NewReader([]byte("definitely not pcap")), nil, func(Message) error { return nil })
	assert.Error(t, err)
}

func TestRead_MidStreamKeepsCarryingFrame(t *testing.T) {
	b := newPcapBuilder(t)
	// без SYN данные держатся в сборщике до сброса
	b.segment(clientAddr, serverAddr, false, []byte{0x01, 0x00, 0x1E})
	first := b.ts

	b.ts = b.ts.Add(3 * time.Second)
	b.segment(serverAddr, clientAddr, false, []byte{0x01, 0x00, 0x1F})
	second := b.ts

	msgs, _ := collect(t, b.buf.Bytes(), []uint16{7171})

	require.Len(t, msgs, 2)
	assert.Equal(t, uint32(1), msgs[0].Frame)
	assert.True(t, first.Equal(msgs[0].Timestamp))
	assert.Equal(t, []byte{0x01, 0x00, 0x1E}, msgs[0].Data)

	assert.Equal(t, uint32(2), msgs[1].Frame)
	assert.True(t, second.Equal(msgs[1].Timestamp))
	assert.Equal(t, serverAddr, msgs[1].Src)
}
