package ssdp

import (
	"sync"

	"go.uber.org/zap"
)

// queueSize bounds the listener's advertisement buffer. Datagrams
// arriving while the buffer is full are dropped with a log line rather
// than blocking the read loop.
const queueSize = 64

// Listener passively collects every advertisement seen on the
// multicast group: alive and byebye notifications, search requests,
// and stray unicast search responses.
type Listener struct {
	conn   *conn
	logger *zap.Logger

	mu      sync.Mutex
	queue   chan Advertisement
	stopped bool
}

// Listen joins the multicast group and starts the single read
// goroutine. Parse errors are logged and dropped, never surfaced.
func Listen(cfg Config, logger *zap.Logger) (*Listener, error) {
	c, err := openConn(cfg)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		conn:   c,
		logger: logger,
		queue:  make(chan Advertisement, queueSize),
	}
	go l.readLoop(c, l.queue)
	logger.Info("ssdp listener started")
	return l, nil
}

// Chan returns the channel advertisements are delivered on. The
// channel is closed when the listener stops.
func (l *Listener) Chan() <-chan Advertisement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue
}

// Stop closes the socket, ends the read loop, and replaces the queue
// with a fresh empty one so a later Listen-like restart starts clean.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.conn.close()
	l.queue = make(chan Advertisement, queueSize)
	l.logger.Info("ssdp listener stopped")
}

func (l *Listener) readLoop(c *conn, queue chan Advertisement) {
	defer close(queue)

	buf := make([]byte, 1024)
	for {
		n, from, err := c.readFrom(buf)
		if err != nil {
			// Socket closed by Stop, or a fatal read error either way
			// the loop ends here.
			return
		}

		adv, err := Parse(buf[:n])
		if err != nil {
			l.logger.Debug("ssdp datagram dropped",
				zap.String("peer", from.String()),
				zap.Error(err),
			)
			continue
		}

		select {
		case queue <- adv:
		default:
			l.logger.Warn("ssdp queue full, advertisement dropped",
				zap.String("peer", from.String()),
			)
		}
	}
}
