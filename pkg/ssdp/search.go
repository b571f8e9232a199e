package ssdp

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SearchFor sends one M-SEARCH per target, listens for the timeout
// window, and returns everything that arrived. No targets means
// ssdp:all; see DeviceTarget and ServiceTarget for the URN sugar.
func SearchFor(ctx context.Context, cfg Config, timeout time.Duration, logger *zap.Logger, targets ...string) ([]Advertisement, error) {
	resolved, err := normalizeTargets(targets)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	c, err := openConn(cfg.withDefaults())
	if err != nil {
		return nil, err
	}
	defer c.close()

	queue := make(chan Advertisement, queueSize)
	go func() {
		defer close(queue)
		buf := make([]byte, 1024)
		for {
			n, from, err := c.readFrom(buf)
			if err != nil {
				return
			}
			adv, perr := Parse(buf[:n])
			if perr != nil {
				logger.Debug("ssdp datagram dropped",
					zap.String("peer", from.String()),
					zap.Error(perr),
				)
				continue
			}
			select {
			case queue <- adv:
			default:
			}
		}
	}()

	mx := int(timeout / time.Second)
	if mx < 1 {
		mx = 1
	}
	for _, target := range resolved {
		s := &Search{Target: target, WaitTime: mx}
		if err := c.writeGroup(s.Encode()); err != nil {
			logger.Warn("ssdp search send failed",
				zap.String("st", target),
				zap.Error(err),
			)
		}
	}
	logger.Debug("ssdp search sent", zap.Strings("targets", resolved))

	// Hard wall-clock deadline; afterwards the queue is drained and
	// everything collected so far is returned.
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-ctx.Done():
	case <-deadline.C:
	}
	c.close()

	var out []Advertisement
	for adv := range queue {
		out = append(out, adv)
	}
	return out, ctx.Err()
}
