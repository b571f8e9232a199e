package ssdp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Target is one (NT, USN) roster entry a device advertises.
type Target struct {
	NT  string
	USN string
}

// AdvertiserConfig configures the server-side announcement loops.
type AdvertiserConfig struct {
	Conn           Config
	HTTPPort       int           // port of the description server
	Server         string        // SERVER header product string
	NotifyInterval time.Duration // default 60s, matching the classic loop
	MaxAge         int           // CACHE-CONTROL max-age, default 120
	AnswerAll      bool          // answer ssdp:all searches with the full roster
}

func (c AdvertiserConfig) withDefaults() AdvertiserConfig {
	c.Conn = c.Conn.withDefaults()
	if c.NotifyInterval == 0 {
		// UPnP advises max_age/2 with jitter; the classic loop uses a
		// flat 60s and this default keeps that behavior.
		c.NotifyInterval = 60 * time.Second
	}
	if c.MaxAge == 0 {
		c.MaxAge = 120
	}
	return c
}

// Advertiser announces a device roster over SSDP: a periodic NOTIFY
// loop, a search responder, and an ordered byebye on shutdown.
type Advertiser struct {
	cfg    AdvertiserConfig
	roster []Target
	conn   *conn
	logger *zap.Logger
}

// NewAdvertiser opens the shared multicast socket and prepares the
// announcement loops for the given roster.
func NewAdvertiser(cfg AdvertiserConfig, roster []Target, logger *zap.Logger) (*Advertiser, error) {
	if len(roster) == 0 {
		return nil, fmt.Errorf("ssdp: empty advertisement roster")
	}
	cfg = cfg.withDefaults()

	c, err := openConn(cfg.Conn)
	if err != nil {
		return nil, err
	}
	return &Advertiser{
		cfg:    cfg,
		roster: roster,
		conn:   c,
		logger: logger,
	}, nil
}

// Run starts the notify loop and the search responder and blocks until
// ctx is cancelled, at which point byebye notifications are sent in
// announcement order and the socket is closed.
func (a *Advertiser) Run(ctx context.Context) error {
	a.logger.Info("ssdp advertiser started",
		zap.Int("targets", len(a.roster)),
		zap.Duration("interval", a.cfg.NotifyInterval),
	)

	go a.respondLoop(ctx)

	a.notifyAll()

	ticker := time.NewTicker(a.cfg.NotifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.byebyeAll()
			err := a.conn.close()
			a.logger.Info("ssdp advertiser stopped")
			return err
		case <-ticker.C:
			a.notifyAll()
		}
	}
}

// notifyAll emits an ssdp:alive NOTIFY for every roster entry from
// every local address.
func (a *Advertiser) notifyAll() {
	hosts, err := localAddrs()
	if err != nil {
		a.logger.Warn("ssdp local address lookup failed", zap.Error(err))
		return
	}
	for _, host := range hosts {
		for _, tgt := range a.roster {
			n := &Notification{
				Host:     a.cfg.Conn.Group,
				Port:     a.cfg.Conn.Port,
				Location: a.location(host),
				MaxAge:   a.cfg.MaxAge,
				Type:     tgt.NT,
				SubType:  SubTypeAlive,
				Server:   a.cfg.Server,
				Name:     tgt.USN,
			}
			if err := a.conn.writeGroup(n.Encode()); err != nil {
				a.logger.Warn("ssdp notify send failed",
					zap.String("nt", tgt.NT),
					zap.Error(err),
				)
			}
		}
	}
	a.logger.Debug("ssdp alive notifications sent",
		zap.Int("hosts", len(hosts)),
		zap.Int("targets", len(a.roster)),
	)
}

// byebyeAll emits ssdp:byebye in the same order the alive loop used.
func (a *Advertiser) byebyeAll() {
	for _, tgt := range a.roster {
		n := &Notification{
			Host:    a.cfg.Conn.Group,
			Port:    a.cfg.Conn.Port,
			Type:    tgt.NT,
			SubType: SubTypeByebye,
			Name:    tgt.USN,
		}
		if err := a.conn.writeGroup(n.Encode()); err != nil {
			a.logger.Warn("ssdp byebye send failed",
				zap.String("nt", tgt.NT),
				zap.Error(err),
			)
		}
	}
	a.logger.Info("ssdp byebye sent", zap.Int("targets", len(a.roster)))
}

// respondLoop reads datagrams from the shared socket and answers
// matching searches. Parse failures are logged and dropped.
func (a *Advertiser) respondLoop(ctx context.Context) {
	buf := make([]byte, 1024)
	for {
		n, from, err := a.conn.readFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("ssdp read failed", zap.Error(err))
			continue
		}

		adv, err := Parse(buf[:n])
		if err != nil {
			a.logger.Debug("ssdp datagram dropped", zap.Error(err))
			continue
		}
		search, ok := adv.(*Search)
		if !ok {
			continue
		}
		go a.answer(search, from)
	}
}

// answer replies to one search from one peer, choosing the local
// address the reply's LOCATION should carry.
func (a *Advertiser) answer(search *Search, from net.Addr) {
	host := a.localHostFor(from)
	responses := a.Responses(search, host)
	if len(responses) == 0 {
		a.logger.Debug("ssdp search target ignored", zap.String("st", search.Target))
		return
	}
	for _, r := range responses {
		if err := a.conn.writeTo(r.Encode(), from); err != nil {
			a.logger.Warn("ssdp search response failed",
				zap.String("st", r.Target),
				zap.Error(err),
			)
		}
	}
	a.logger.Debug("ssdp search answered",
		zap.String("st", search.Target),
		zap.String("peer", from.String()),
		zap.Int("responses", len(responses)),
	)
}

// Responses builds the answer set for one search: the root-device
// target and hosted device-type URNs are always answered; ssdp:all is
// answered with the full roster when configured.
func (a *Advertiser) Responses(search *Search, host string) []*Response {
	var matched []Target
	switch {
	case search.Target == TargetAll && a.cfg.AnswerAll:
		matched = a.roster
	default:
		for _, tgt := range a.roster {
			if tgt.NT != search.Target {
				continue
			}
			if tgt.NT == TargetRoot || strings.Contains(tgt.NT, ":device:") {
				matched = append(matched, tgt)
			}
		}
	}

	out := make([]*Response, 0, len(matched))
	for _, tgt := range matched {
		out = append(out, &Response{
			MaxAge:   a.cfg.MaxAge,
			Location: a.location(host),
			Server:   a.cfg.Server,
			Target:   tgt.NT,
			Name:     tgt.USN,
			Ext:      true,
		})
	}
	return out
}

func (a *Advertiser) location(host string) string {
	return fmt.Sprintf("http://%s:%d/description", host, a.cfg.HTTPPort)
}

// localHostFor picks the local address on the same network as the
// peer, falling back to the first usable address.
func (a *Advertiser) localHostFor(peer net.Addr) string {
	hosts, err := localAddrs()
	if err != nil || len(hosts) == 0 {
		return "0.0.0.0"
	}
	udp, ok := peer.(*net.UDPAddr)
	if !ok {
		return hosts[0]
	}
	for _, h := range hosts {
		ifaces, err := net.Interfaces()
		if err != nil {
			break
		}
		for i := range ifaces {
			addrs, err := ifaces[i].Addrs()
			if err != nil {
				continue
			}
			for _, addr := range addrs {
				ipnet, ok := addr.(*net.IPNet)
				if !ok || ipnet.IP.String() != h {
					continue
				}
				if ipnet.Contains(udp.IP) {
					return h
				}
			}
		}
	}
	return hosts[0]
}
