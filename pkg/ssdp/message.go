package ssdp

import (
	"fmt"
	"strings"
)

// Encode renders the notification back to wire form, alive or byebye.
// Byebye notifications omit CACHE-CONTROL, LOCATION, and SERVER.
func (n *Notification) Encode() []byte {
	var b strings.Builder
	b.WriteString("NOTIFY * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s:%d\r\n", n.Host, n.Port)
	if n.SubType != SubTypeByebye {
		fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", n.MaxAge)
		fmt.Fprintf(&b, "LOCATION: %s\r\n", n.Location)
	}
	fmt.Fprintf(&b, "NT: %s\r\n", n.Type)
	fmt.Fprintf(&b, "NTS: %s\r\n", n.SubType)
	if n.SubType != SubTypeByebye {
		fmt.Fprintf(&b, "SERVER: %s\r\n", n.Server)
	}
	fmt.Fprintf(&b, "USN: %s\r\n", n.Name)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Encode renders the search response to wire form.
func (r *Response) Encode() []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", r.MaxAge)
	b.WriteString("EXT:\r\n")
	fmt.Fprintf(&b, "LOCATION: %s\r\n", r.Location)
	fmt.Fprintf(&b, "SERVER: %s\r\n", r.Server)
	fmt.Fprintf(&b, "ST: %s\r\n", r.Target)
	fmt.Fprintf(&b, "NTS: %s\r\n", SubTypeAlive)
	fmt.Fprintf(&b, "USN: %s\r\n", r.Name)
	b.WriteString("Content-Length: 0\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Encode renders an M-SEARCH request to wire form.
func (s *Search) Encode() []byte {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s:%d\r\n", DefaultGroup, DefaultPort)
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	fmt.Fprintf(&b, "MX: %d\r\n", s.WaitTime)
	fmt.Fprintf(&b, "ST: %s\r\n", s.Target)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// DeviceTarget builds a device-type search target from "Type.Version".
func DeviceTarget(typeVersion string) string {
	return "urn:schemas-upnp-org:device:" + typeVersion
}

// ServiceTarget builds a service-type search target from "Type.Version".
func ServiceTarget(typeVersion string) string {
	return "urn:schemas-upnp-org:service:" + typeVersion
}

// normalizeTargets applies the search-target sugar: no targets means
// ssdp:all, and literals must carry a recognized scheme.
func normalizeTargets(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return []string{TargetAll}, nil
	}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		switch {
		case t == TargetRoot || t == TargetAll:
			out = append(out, t)
		case strings.HasPrefix(t, "urn:"),
			strings.HasPrefix(t, "uuid:"),
			strings.HasPrefix(t, "ssdp:"):
			out = append(out, t)
		default:
			return nil, fmt.Errorf("ssdp: unknown search target %q", t)
		}
	}
	return out, nil
}
