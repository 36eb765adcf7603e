package audio

import (
	"errors"
	"os"
	"sync"

	"golang.org/x/term"
)

const (
	keyCarriageReturn byte = '\r'
	keyLineFeed       byte = '\n'
	keyCtrlC          byte = 0x03
)

// ErrNotTerminal is returned by EnableRaw when the input is not a terminal.
var ErrNotTerminal = errors.New("input is not a terminal")

// KeyInput delivers single keypresses to a recording session.
type KeyInput interface {
	// EnableRaw switches the input to unbuffered, no-echo mode.
	EnableRaw() error
	// Restore undoes EnableRaw.
	Restore() error
	// Subscribe starts delivering keys until the returned func is called.
	Subscribe() (<-chan byte, func())
}

// StdinInput reads keys from the process's standard input. Only one session
// may use it at a time. A single reader goroutine runs for the life of the
// process and drops keys while nobody is subscribed.
type StdinInput struct {
	file *os.File

	mu         sync.Mutex
	state      *term.State
	subscriber chan byte
	readerOnce sync.Once
}

// NewStdinInput wraps os.Stdin.
func NewStdinInput() *StdinInput {
	return &StdinInput{file: os.Stdin}
}

// IsTerminal reports whether stdin is attached to a terminal.
func (s *StdinInput) IsTerminal() bool {
	return term.IsTerminal(int(s.file.Fd()))
}

func (s *StdinInput) EnableRaw() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return nil
	}
	fd := int(s.file.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	s.state = state
	return nil
}

func (s *StdinInput) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == nil {
		return nil
	}
	err := term.Restore(int(s.file.Fd()), s.state)
	s.state = nil
	return err
}

func (s *StdinInput) Subscribe() (<-chan byte, func()) {
	s.readerOnce.Do(func() { go s.readLoop() })

	ch := make(chan byte, 16)
	s.mu.Lock()
	s.subscriber = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		if s.subscriber == ch {
			s.subscriber = nil
		}
		s.mu.Unlock()
	}
}

func (s *StdinInput) readLoop() {
	buf := make([]byte, 64)
	for {
		n, err := s.file.Read(buf)
		for _, b := range buf[:n] {
			s.mu.Lock()
			sub := s.subscriber
			s.mu.Unlock()
			if sub == nil {
				continue
			}
			select {
			case sub <- b:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}
