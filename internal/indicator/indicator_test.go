package indicator

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestLightStates(t *testing.T) {
	var out syncBuffer
	l := New(&out, 10*time.Millisecond)
	defer l.Close()
	assert.Equal(t, Off, l.State())

	l.Lit()
	assert.Equal(t, Lit, l.State())
	assert.Contains(t, out.String(), "● connected")

	l.Lit()
	assert.Equal(t, 1, strings.Count(out.String(), "connected"), "unchanged state is not redrawn")

	l.Off()
	assert.Equal(t, Off, l.State())
	assert.Contains(t, out.String(), "○ offline")
}

func TestLightBlinks(t *testing.T) {
	var out syncBuffer
	l := New(&out, 5*time.Millisecond)

	l.Blink()
	assert.Equal(t, Blinking, l.State())
	assert.Eventually(t, func() bool {
		return strings.Count(out.String(), "\r") >= 3
	}, time.Second, 5*time.Millisecond)

	l.Lit()
	assert.Equal(t, Lit, l.State())
	n := len(out.String())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(out.String()), "blinking stops once lit")
}

func TestLightCloseWhileBlinking(t *testing.T) {
	var out syncBuffer
	l := New(&out, time.Millisecond)
	l.Blink()
	l.Blink()
	l.Close()
	l.Close()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "blinking", Blinking.String())
	assert.Equal(t, "state(9)", State(9).String())
}
