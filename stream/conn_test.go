package stream

import (
	"errors"
	"sync"
)

type closeCall struct {
	code   int
	reason string
}

// fakeConn records frames and close calls. buffered is what BufferedBytes
// reports.
type fakeConn struct {
	mu       sync.Mutex
	buffered int
	frames   [][]byte
	closes   []closeCall
	sendErr  error
}

func (c *fakeConn) BufferedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, closeCall{code: code, reason: reason})
	return nil
}

func (c *fakeConn) setBuffered(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffered = n
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) closeCalls() []closeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]closeCall(nil), c.closes...)
}

var errBrokenPipe = errors.New("broken pipe")
