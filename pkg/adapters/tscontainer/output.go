package tscontainer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// datagramPackets is the number of TS packets carried per UDP datagram.
const datagramPackets = 7

// Muxer writes MPEG-TS to files, tcp:// servers and udp:// peers. It
// implements ports.Muxer.
type Muxer struct {
	fs     ports.FileSystem
	dialer net.Dialer
}

// NewMuxer creates a muxer. File targets are created through fs.
func NewMuxer(fs ports.FileSystem) *Muxer {
	return &Muxer{fs: fs}
}

func (m *Muxer) Name() string { return "mpegts" }

func (m *Muxer) Accepts(target string) bool {
	switch scheme(target) {
	case "", "file", "tcp", "udp":
		return true
	}
	return false
}

// Create opens target and writes the stream tables on the first packet.
func (m *Muxer) Create(ctx context.Context, target string, streams []av.StreamInfo) (ports.PacketWriter, error) {
	w, err := m.open(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("tscontainer: %s: %w", target, err)
	}
	wr, err := NewWriter(ctx, w, streams)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Output{Writer: wr, w: w}, nil
}

func (m *Muxer) open(ctx context.Context, target string) (io.WriteCloser, error) {
	switch scheme(target) {
	case "":
		return m.fs.Create(target)
	case "file":
		u, _ := url.Parse(target)
		return m.fs.Create(u.Path)
	case "tcp":
		u, _ := url.Parse(target)
		return m.dialer.DialContext(ctx, "tcp", u.Host)
	case "udp":
		u, _ := url.Parse(target)
		conn, err := m.dialer.DialContext(ctx, "udp", u.Host)
		if err != nil {
			return nil, err
		}
		return &datagramWriter{conn: conn, buf: make([]byte, 0, datagramPackets*packetSize)}, nil
	}
	return nil, fmt.Errorf("unsupported target scheme %q", scheme(target))
}

var _ ports.Muxer = (*Muxer)(nil)

// Output is a Writer bound to its destination.
type Output struct {
	*Writer
	w io.WriteCloser
}

// Close flushes buffered datagrams and closes the destination.
func (o *Output) Close() error {
	return o.w.Close()
}

var _ ports.PacketWriter = (*Output)(nil)

// datagramWriter groups TS packets into datagrams of up to seven packets.
type datagramWriter struct {
	conn net.Conn
	buf  []byte
}

func (d *datagramWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		room := cap(d.buf) - len(d.buf)
		if room > len(p) {
			room = len(p)
		}
		d.buf = append(d.buf, p[:room]...)
		p = p[room:]
		if len(d.buf) == cap(d.buf) {
			if err := d.flush(); err != nil {
				return 0, err
			}
		}
	}
	return n, nil
}

func (d *datagramWriter) flush() error {
	if len(d.buf) == 0 {
		return nil
	}
	_, err := d.conn.Write(d.buf)
	d.buf = d.buf[:0]
	return err
}

func (d *datagramWriter) Close() error {
	err := d.flush()
	if cerr := d.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// scheme returns the lower-case URL scheme of target, or "" for plain
// paths, including Windows drive letters.
func scheme(target string) string {
	u, err := url.Parse(target)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
