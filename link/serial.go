package link

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/snksoft/crc"
	"github.com/tarm/serial"

	"github.com/stagesfw/firmware/chain"
)

// wireSize is one framed packet on the UART: a two-byte sync marker,
// the fixed chain.FrameSize payload, and a CRC-16/CCITT trailer,
// generalized from the nkt package's telegram framing, which uses a
// variable-length escaped telegram rather than a fixed-size binary one (no
// escaping is needed since the payload has no in-band sync-byte
// collisions to worry about at this frame size in practice; a
// production build would still want byte-stuffing, noted in
// DESIGN.md).
const wireSize = 2 + chain.FrameSize + 2

var (
	syncBytes = [2]byte{0xaa, 0x55}
	crcTable  = crc.NewTable(crc.CCITT)
)

// PortConfig names the serial device and baud rate for one neighbor
// connection.
type PortConfig struct {
	Name string
	Baud int
}

// Serial is a chain.Link backed by two real UART connections, one to
// each physical neighbor. Grounded on comm.RemoteDevice's
// backoff.Retry-wrapped serial.OpenPort pattern, split into two
// independent ports (a module has one UART per side, not one shared
// remote) and read continuously by a background goroutine per port
// instead of request/response.
type Serial struct {
	left, right *port
}

// NewSerial opens both neighbor ports. Either PortConfig may be the
// zero value (Name == "") for a module at a chain end; that side's
// Send/Recv methods become no-ops, matching nullLink's behavior for
// an unconnected side.
func NewSerial(leftConf, rightConf PortConfig) (*Serial, error) {
	s := &Serial{}
	var err error
	if leftConf.Name != "" {
		s.left, err = openPort(leftConf)
		if err != nil {
			return nil, errors.Wrap(err, "link: open left port")
		}
	}
	if rightConf.Name != "" {
		s.right, err = openPort(rightConf)
		if err != nil {
			return nil, errors.Wrap(err, "link: open right port")
		}
	}
	return s, nil
}

// Close shuts down both ports' background readers and underlying
// connections.
func (s *Serial) Close() error {
	var firstErr error
	for _, p := range []*port{s.left, s.right} {
		if p == nil {
			continue
		}
		if err := p.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Serial) SendLeft(f [chain.FrameSize]byte) {
	if s.left != nil {
		s.left.send(f)
	}
}

func (s *Serial) SendRight(f [chain.FrameSize]byte) {
	if s.right != nil {
		s.right.send(f)
	}
}

func (s *Serial) RecvLeft() ([chain.FrameSize]byte, bool) {
	if s.left == nil {
		return [chain.FrameSize]byte{}, false
	}
	return s.left.recv()
}

func (s *Serial) RecvRight() ([chain.FrameSize]byte, bool) {
	if s.right == nil {
		return [chain.FrameSize]byte{}, false
	}
	return s.right.recv()
}

// port owns one UART connection: a mutex-guarded writer and a
// background reader goroutine that resyncs on the sync marker,
// validates the CRC, and keeps only the most recently decoded frame
// (absence or corruption of traffic must not stall the caller).
type port struct {
	conf serial.Config

	mu   sync.Mutex
	conn io.ReadWriteCloser

	rx     chan [chain.FrameSize]byte
	closed chan struct{}
}

func openPort(c PortConfig) (*port, error) {
	p := &port{
		conf:   serial.Config{Name: c.Name, Baud: c.Baud, ReadTimeout: 50 * time.Millisecond},
		rx:     make(chan [chain.FrameSize]byte, 1),
		closed: make(chan struct{}),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.readLoop()
	return p, nil
}

// connect opens the underlying port with an exponential backoff retry,
// the same policy RemoteDevice.Open uses against the NKT sources:
// don't hammer a serial device that's slow to enumerate.
func (p *port) connect() error {
	op := func() error {
		conn, err := serial.OpenPort(&p.conf)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		return nil
	}
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	})
}

func (p *port) close() error {
	close(p.closed)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *port) send(f [chain.FrameSize]byte) {
	var buf bytes.Buffer
	buf.Write(syncBytes[:])
	buf.Write(f[:])
	sum := crcTable.CalculateCRC(f[:])
	buf.WriteByte(byte(sum >> 8))
	buf.WriteByte(byte(sum))

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return
	}
	conn.Write(buf.Bytes())
}

func (p *port) recv() ([chain.FrameSize]byte, bool) {
	select {
	case f := <-p.rx:
		return f, true
	default:
		return [chain.FrameSize]byte{}, false
	}
}

// readLoop resyncs on the two-byte marker, reads one frame plus its
// CRC, and on success overwrites rx with the latest decoded frame
// (non-blocking: a frame nobody read yet is replaced, not queued).
// On a read error it attempts to reconnect with the same backoff
// policy as the initial open.
func (p *port) readLoop() {
	var window [2]byte
	frame := make([]byte, chain.FrameSize+2)
	for {
		select {
		case <-p.closed:
			return
		default:
		}

		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			if err := p.connect(); err != nil {
				time.Sleep(time.Second)
			}
			continue
		}

		var b [1]byte
		n, err := conn.Read(b[:])
		if err != nil || n == 0 {
			p.mu.Lock()
			p.conn = nil
			p.mu.Unlock()
			continue
		}
		window[0], window[1] = window[1], b[0]
		if window != syncBytes {
			continue
		}

		if _, err := io.ReadFull(conn, frame); err != nil {
			continue
		}
		payload := frame[:chain.FrameSize]
		want := uint16(frame[chain.FrameSize])<<8 | uint16(frame[chain.FrameSize+1])
		if uint16(crcTable.CalculateCRC(payload)) != want {
			continue
		}

		var f [chain.FrameSize]byte
		copy(f[:], payload)
		select {
		case <-p.rx:
		default:
		}
		p.rx <- f
	}
}
