// Package link provides the transport chain.ChainState drives:
// Serial, a real two-UART backend (one port per neighbor) for
// physical modules, and Bus, an in-process virtual chain for
// simulating a multi-module instrument without hardware.
package link

import "github.com/stagesfw/firmware/chain"

// Bus wires n chain.ChainState instances into a line, each one's
// right neighbor the next one's left, with no wraparound (a physical
// chain has two free ends). The two end Endpoints have no outward
// neighbor, and Bus provides no way to wire them to each other.
type Bus struct {
	edges []*edge
}

type edge struct {
	rightward chan [chain.FrameSize]byte // sent by the left module, read by the right one
	leftward  chan [chain.FrameSize]byte // sent by the right module, read by the left one
}

// NewBus builds a bus with n-1 internal links for an n-module chain.
func NewBus(n int) *Bus {
	b := &Bus{}
	for i := 0; i < n-1; i++ {
		b.edges = append(b.edges, &edge{
			rightward: make(chan [chain.FrameSize]byte, 1),
			leftward:  make(chan [chain.FrameSize]byte, 1),
		})
	}
	return b
}

// Endpoint returns the chain.Link for module index i (0..n-1), the
// same interface a real Serial link presents, so ChainState.SetLink
// doesn't know or care it's talking to a simulated bus.
func (b *Bus) Endpoint(i int) chain.Link {
	ep := &endpoint{}
	if i > 0 {
		ep.left = b.edges[i-1]
	}
	if i < len(b.edges) {
		ep.right = b.edges[i]
	}
	return ep
}

type endpoint struct {
	left, right *edge // nil at an unconnected chain end
}

func (e *endpoint) SendRight(f [chain.FrameSize]byte) {
	if e.right != nil {
		trySend(e.right.rightward, f)
	}
}

func (e *endpoint) SendLeft(f [chain.FrameSize]byte) {
	if e.left != nil {
		trySend(e.left.leftward, f)
	}
}

func (e *endpoint) RecvRight() ([chain.FrameSize]byte, bool) {
	if e.right == nil {
		return [chain.FrameSize]byte{}, false
	}
	return tryRecv(e.right.leftward)
}

func (e *endpoint) RecvLeft() ([chain.FrameSize]byte, bool) {
	if e.left == nil {
		return [chain.FrameSize]byte{}, false
	}
	return tryRecv(e.left.rightward)
}

// trySend is latest-wins: if the previous tick's frame hasn't been
// read yet, it's dropped in favor of this one, matching a UART
// receiver that only keeps its most recent shift-register load.
func trySend(ch chan [chain.FrameSize]byte, f [chain.FrameSize]byte) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

func tryRecv(ch chan [chain.FrameSize]byte) ([chain.FrameSize]byte, bool) {
	select {
	case f := <-ch:
		return f, true
	default:
		return [chain.FrameSize]byte{}, false
	}
}
