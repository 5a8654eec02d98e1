package chain

// Link is the bidirectional neighbor connection a ChainState drives one
// 24-byte frame at a time, once per phase. Implementations (a real UART
// pair or an in-process virtual link for simulating a multi-module
// chain) live in the link package; chain only depends on this interface
// to avoid a cycle between the two packages.
type Link interface {
	// SendRight transmits a frame to this module's right neighbor.
	// SendLeft transmits a frame to this module's left neighbor.
	SendRight(frame [FrameSize]byte)
	SendLeft(frame [FrameSize]byte)

	// RecvRight and RecvLeft return the most recent frame received from
	// that side this tick, and whether one arrived at all. Absence of
	// traffic must not stall the caller.
	RecvRight() ([FrameSize]byte, bool)
	RecvLeft() ([FrameSize]byte, bool)
}

// nullLink discards everything and never receives; used for a module
// that hasn't been wired to a real or virtual link yet (e.g. in tests
// that only exercise single-module behavior).
type nullLink struct{}

func (nullLink) SendRight([FrameSize]byte)          {}
func (nullLink) SendLeft([FrameSize]byte)           {}
func (nullLink) RecvRight() ([FrameSize]byte, bool) { return [FrameSize]byte{}, false }
func (nullLink) RecvLeft() ([FrameSize]byte, bool)  { return [FrameSize]byte{}, false }
