package realtime

import (
	"io"
	"sync"
)

type frame struct {
	messageType int
	payload     []byte
	err         error
}

// testConn records frames written by the pumps and replays queued reads.
type testConn struct {
	mu     sync.Mutex
	writes []frame
	reads  []frame
	closed int
}

var _ wsConn = (*testConn)(nil)

func (c *testConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, frame{messageType: messageType, payload: append([]byte(nil), data...)})
	return nil
}

func (c *testConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reads) == 0 {
		return 0, nil, io.EOF
	}
	f := c.reads[0]
	c.reads = c.reads[1:]
	return f.messageType, f.payload, f.err
}

func (c *testConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *testConn) written() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.writes...)
}

func (c *testConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
