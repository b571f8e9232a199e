package ssdp

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// Config carries the multicast parameters shared by the advertiser and
// the listener. The zero value is completed by withDefaults.
type Config struct {
	Group string // multicast group address
	Port  int    // multicast port
	TTL   int    // IP and multicast TTL
}

func (c Config) withDefaults() Config {
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	return c
}

func (c Config) groupAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(c.Group), Port: c.Port}
}

// conn wraps one UDP multicast socket. An Advertiser shares its conn
// between the notify loop and the search responder; Listen and
// SearchFor each open their own. One goroutine reads; any number
// write — the kernel serializes sends.
type conn struct {
	pc    net.PacketConn
	p     *ipv4.PacketConn
	group *net.UDPAddr
}

// openConn binds 0.0.0.0:<port>, joins the multicast group on every
// multicast-capable interface, and applies TTL and loopback options.
func openConn(cfg Config) (*conn, error) {
	cfg = cfg.withDefaults()

	group := cfg.groupAddr()
	if group.IP == nil {
		return nil, fmt.Errorf("ssdp: invalid multicast group %q", cfg.Group)
	}

	pc, err := net.ListenPacket("udp4", fmt.Sprintf("0.0.0.0:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("ssdp: bind %d: %w", cfg.Port, err)
	}

	p := ipv4.NewPacketConn(pc)
	joined := 0
	ifaces, err := net.Interfaces()
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("ssdp: list interfaces: %w", err)
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagMulticast == 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if err := p.JoinGroup(ifi, group); err != nil {
			continue
		}
		joined++
	}
	if joined == 0 {
		// Fall back to the default interface choice.
		if err := p.JoinGroup(nil, group); err != nil {
			pc.Close()
			return nil, fmt.Errorf("ssdp: join %s: %w", group, err)
		}
	}

	if err := p.SetMulticastLoopback(false); err != nil {
		pc.Close()
		return nil, fmt.Errorf("ssdp: disable loopback: %w", err)
	}
	if err := p.SetMulticastTTL(cfg.TTL); err != nil {
		pc.Close()
		return nil, fmt.Errorf("ssdp: set multicast ttl: %w", err)
	}
	if err := p.SetTTL(cfg.TTL); err != nil {
		pc.Close()
		return nil, fmt.Errorf("ssdp: set ttl: %w", err)
	}

	return &conn{pc: pc, p: p, group: group}, nil
}

func (c *conn) writeTo(data []byte, addr net.Addr) error {
	_, err := c.pc.WriteTo(data, addr)
	return err
}

func (c *conn) writeGroup(data []byte) error {
	return c.writeTo(data, c.group)
}

func (c *conn) readFrom(buf []byte) (int, net.Addr, error) {
	return c.pc.ReadFrom(buf)
}

func (c *conn) close() error {
	return c.pc.Close()
}

// localAddrs returns every usable unicast IPv4 address on the host.
func localAddrs() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("ssdp: interface addrs: %w", err)
	}
	var out []string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		out = append(out, ip.String())
	}
	return out, nil
}
