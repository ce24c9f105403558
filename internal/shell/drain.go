package shell

import (
	"bytes"
	"io"
	"sync"
)

// pump continuously copies from r into an internal buffer so drain() never
// blocks; it is the common non-blocking-read primitive for both the PTY
// and pipe backends.
type pump struct {
	mu  sync.Mutex
	buf bytes.Buffer
	err error
}

func newPump(r io.Reader) *pump {
	p := &pump{}
	go p.run(r)
	return p
}

func (p *pump) run(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.buf.Write(buf[:n])
			p.mu.Unlock()
		}
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return
		}
	}
}

// take returns and clears everything accumulated so far.
func (p *pump) take() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, p.buf.Len())
	copy(out, p.buf.Bytes())
	p.buf.Reset()
	return out
}
