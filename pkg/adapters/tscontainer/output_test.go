package tscontainer

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/mocks"
	"github.com/user/mediaplay/pkg/ports"
)

func writeAll(t *testing.T, w ports.PacketWriter) {
	t.Helper()
	for i := 0; i < 3; i++ {
		pkt := &av.Packet{StreamIndex: 0, PTS: int64(i * 3000), DTS: int64(i * 3000), Key: i == 0, Data: videoAU(i == 0, byte(i))}
		if err := w.WritePacket(pkt); err != nil {
			t.Fatalf("WritePacket failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestMuxer_Accepts(t *testing.T) {
	m := NewMuxer(mocks.NewFileSystem())
	tests := []struct {
		target string
		want   bool
	}{
		{"out.ts", true},
		{`C:\media\out.ts`, true},
		{"file:///tmp/out.ts", true},
		{"tcp://127.0.0.1:9000", true},
		{"udp://239.0.0.1:1234", true},
		{"rtmp://live.example.com/app/key", false},
	}
	for _, tt := range tests {
		if got := m.Accepts(tt.target); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestMuxer_File(t *testing.T) {
	fs := mocks.NewFileSystem()
	w, err := NewMuxer(fs).Create(context.Background(), "relay.ts", testStreams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !w.Supports(0) || w.Supports(2) {
		t.Error("expected H.264 supported and AV1 skipped")
	}
	writeAll(t, w)

	data, ok := fs.GetFile("relay.ts")
	if !ok {
		t.Fatal("expected relay.ts to be written")
	}
	if len(data) == 0 || len(data)%packetSize != 0 || data[0] != 0x47 {
		t.Fatalf("output is not a transport stream: %d bytes", len(data))
	}

	c, err := New().Open("relay.ts", bytes.NewReader(data), ports.ContainerOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()
	n := 0
	for {
		pkt, err := c.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket failed: %v", err)
		}
		if pkt.StreamIndex == 0 {
			n++
		}
	}
	if n != 3 {
		t.Errorf("got %d video packets back, want 3", n)
	}
}

func TestMuxer_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	w, err := NewMuxer(mocks.NewFileSystem()).Create(context.Background(), "tcp://"+ln.Addr().String(), testStreams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	writeAll(t, w)

	data := <-received
	if len(data) == 0 || len(data)%packetSize != 0 {
		t.Errorf("received %d bytes, want a whole number of TS packets", len(data))
	}
}

func TestDatagramWriter_Groups(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer pc.Close()

	conn, err := net.Dial("udp", pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	d := &datagramWriter{conn: conn, buf: make([]byte, 0, datagramPackets*packetSize)}
	for i := 0; i < 9; i++ {
		if _, err := d.Write(make([]byte, packetSize)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	buf := make([]byte, 64*1024)
	var sizes []int
	for len(sizes) < 2 {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom failed: %v", err)
		}
		sizes = append(sizes, n)
	}
	if sizes[0] != 7*packetSize || sizes[1] != 2*packetSize {
		t.Errorf("datagram sizes = %v, want [%d %d]", sizes, 7*packetSize, 2*packetSize)
	}
}
