// Package indicator shows the connection status as a terminal light.
package indicator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// State of the light.
type State int

const (
	Off State = iota
	Lit
	Blinking
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Lit:
		return "lit"
	case Blinking:
		return "blinking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultBlinkInterval is the half period of a blinking light.
const DefaultBlinkInterval = 500 * time.Millisecond

var (
	litColor   = color.New(color.FgHiGreen, color.Bold)
	blinkColor = color.New(color.FgYellow)
	offColor   = color.New(color.FgRed)
)

// Light prints a status glyph each time its state changes, and toggles it
// while blinking.
type Light struct {
	mu       sync.Mutex // guards state and the blink goroutine
	wmu      sync.Mutex // serialises writes to w
	w        io.Writer
	interval time.Duration
	state    State
	stop     chan struct{}
	done     chan struct{}
}

// New returns a light that is off. interval <= 0 selects DefaultBlinkInterval.
func New(w io.Writer, interval time.Duration) *Light {
	if interval <= 0 {
		interval = DefaultBlinkInterval
	}
	return &Light{w: w, interval: interval}
}

// Lit turns the light on steadily.
func (l *Light) Lit() {
	l.set(Lit, litColor, "● connected\n")
}

// Blink starts blinking until another state is set.
func (l *Light) Blink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Blinking {
		return
	}
	l.state = Blinking
	l.print(blinkColor, "◌ reconnecting\n")

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.blink(l.stop, l.done)
}

// Off turns the light off.
func (l *Light) Off() {
	l.set(Off, offColor, "○ offline\n")
}

// State returns the current state.
func (l *Light) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Close stops a blinking light.
func (l *Light) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopBlinking()
}

func (l *Light) set(s State, c *color.Color, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopBlinking()
	if l.state == s {
		return
	}
	l.state = s
	l.print(c, text)
}

func (l *Light) print(c *color.Color, text string) {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	_, _ = c.Fprint(l.w, text)
}

// stopBlinking must be called with mu held.
func (l *Light) stopBlinking() {
	if l.stop == nil {
		return
	}
	close(l.stop)
	<-l.done
	l.stop, l.done = nil, nil
}

func (l *Light) blink(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	glyphs := [2]string{"\r●", "\r◌"}
	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.print(blinkColor, glyphs[i%2])
		}
	}
}
