package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tibiago/internal/testutil"
)

func TestParsePorts(t *testing.T) {
	tests := []struct {
		in      string
		want    []uint16
		wantErr bool
	}{
		{in: "7171", want: []uint16{7171}},
		{in: "7171, 7172,", want: []uint16{7171, 7172}},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "70000", wantErr: true},
		{in: "login", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePorts(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// writeCapture пишет pcap с одним запросом списка персонажей клиента 7.60.
func writeCapture(t *testing.T) string {
	t.Helper()

	body := testutil.NewBuilder().
		U8(0x01).U16(2).U16(760).
		Zeros(12).
		U32(123456).String("pw").
		Bytes()
	payloads := [][]byte{nil, testutil.Envelope(body, false), {0x05, 0x00, 0x01}}

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	seq := uint32(1000)
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, payload := range payloads {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    net.IP{192, 168, 1, 10},
			DstIP:    net.IP{10, 0, 0, 1},
		}
		tcp := &layers.TCP{SrcPort: 51000, DstPort: 7171, Seq: seq, SYN: i == 0, ACK: i != 0, Window: 65535}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
		if i == 0 {
			seq++
		}
		seq += uint32(len(payload))

		out := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(out, opts, eth, ip, tcp, gopacket.Payload(payload)))
		ts = ts.Add(time.Millisecond)
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(out.Bytes()),
			Length:        len(out.Bytes()),
		}, out.Bytes()))
	}

	path := filepath.Join(t.TempDir(), "login.pcap")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRun(t *testing.T) {
	t.Setenv("TIBIAGO_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	path := writeCapture(t)

	t.Run("listing", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, run(context.Background(), []string{path}, &out))

		s := out.String()
		assert.Contains(t, s, "Frame 2  192.168.1.10:51000 -> 10.0.0.1:7171  Login Character list request")
		assert.Contains(t, s, "Account: 123456")
		assert.Contains(t, s, "Password: pw")
		// The 5 byte declared length overruns the captured 3 bytes, so the
		// last message is never completed.
		assert.NotContains(t, s, "Frame 3")
	})

	t.Run("summary", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, run(context.Background(), []string{"-summary", path}, &out))

		s := out.String()
		assert.Contains(t, s, "FRAME")
		assert.Contains(t, s, "Login Character list request")
	})

	t.Run("port filter", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, run(context.Background(), []string{"-ports", "7172", path}, &out))
		assert.Empty(t, out.String())
	})

	t.Run("usage", func(t *testing.T) {
		assert.Error(t, run(context.Background(), nil, &bytes.Buffer{}))
	})

	t.Run("missing capture", func(t *testing.T) {
		err := run(context.Background(), []string{filepath.Join(t.TempDir(), "none.pcap")}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}
