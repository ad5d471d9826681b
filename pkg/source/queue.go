package source

import "github.com/user/mediaplay/pkg/av"

// packetQueue is an unbounded FIFO of packets for one stream.
type packetQueue struct {
	items []*av.Packet
	head  int
}

func (q *packetQueue) push(p *av.Packet) {
	q.items = append(q.items, p)
}

func (q *packetQueue) pop() (*av.Packet, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	p := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if q.head > 32 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return p, true
}

func (q *packetQueue) len() int {
	return len(q.items) - q.head
}

func (q *packetQueue) reset() {
	q.items = nil
	q.head = 0
}
