// Package uuidgen generates RFC 4122 version-1 (time-based) UUIDs keyed
// to a node id persisted on disk, so a device keeps its identity across
// restarts even on hosts without a stable MAC address.
package uuidgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NodeFile is the name of the persisted node id file inside the cache
// directory. It holds 12 lowercase hex characters.
const NodeFile = "uuid_mac_address"

// ticksPerSecond converts wall-clock seconds into UUID 100ns intervals.
const ticksPerSecond = 10_000_000

// clockMask keeps the timestamp inside the 60-bit UUID time field.
const clockMask = (1 << 60) - 1

// maxDrift bounds how many same-tick readings are absorbed by bumping
// the clock before the generator yields the CPU and re-reads it.
const maxDrift = 10_000

// Generator issues version-1 UUIDs. It is safe for concurrent use; all
// state is guarded by a single mutex.
type Generator struct {
	mu        sync.Mutex
	node      [6]byte
	lastClock uint64
	seq       uint16
	drift     int

	now func() time.Time
}

// New creates a generator whose node id is read from NodeFile under dir.
// A missing file is populated once with a random node carrying the
// multicast bit pattern, marking it as not a real MAC.
func New(dir string) (*Generator, error) {
	node, err := loadOrCreateNode(dir)
	if err != nil {
		return nil, err
	}
	return NewWithNode(node), nil
}

// NewWithNode creates a generator with an explicit node id.
func NewWithNode(node [6]byte) *Generator {
	g := &Generator{
		node: node,
		now:  time.Now,
	}
	g.seq = randomSequence()
	return g
}

// Next issues the next UUID. Successive calls under one node id produce
// strictly increasing (clock, sequence) pairs.
func (g *Generator) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := g.now()
		clock := (uint64(now.Unix())*ticksPerSecond + uint64(now.Nanosecond()/100)) & clockMask

		switch {
		case clock > g.lastClock:
			g.lastClock = clock
			g.drift = 0
		case clock == g.lastClock:
			g.lastClock++
			g.drift++
			if g.drift > maxDrift {
				// The wall clock is not advancing fast enough; let
				// other goroutines run and read it again.
				g.mu.Unlock()
				runtime.Gosched()
				g.mu.Lock()
				g.drift = 0
				continue
			}
		default:
			// Clock moved backward: new sequence, accept the reading.
			g.seq = randomSequence()
			g.lastClock = clock
			g.drift = 0
		}

		return g.build(g.lastClock, g.seq)
	}
}

// build lays out the v1 fields: time_low, time_mid, time_hi|version,
// clock_seq with the 10 variant, then the node.
func (g *Generator) build(clock uint64, seq uint16) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], uint32(clock&0xFFFFFFFF))
	binary.BigEndian.PutUint16(u[4:6], uint16(clock>>32&0xFFFF))
	binary.BigEndian.PutUint16(u[6:8], uint16(clock>>48&0x0FFF)|0x1000)
	binary.BigEndian.PutUint16(u[8:10], seq&0x3FFF|0x8000)
	copy(u[10:], g.node[:])
	return u
}

// Compact renders a UUID as 32 hex characters without hyphens.
func Compact(u uuid.UUID) string {
	return strings.ReplaceAll(u.String(), "-", "")
}

// URN renders a UUID in urn:uuid: form.
func URN(u uuid.UUID) string {
	return u.URN()
}

func randomSequence() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// a clock-derived value rather than returning an error here.
		return uint16(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint16(b[:])
}

// loadOrCreateNode reads the 12-hex node file, creating it with a
// random multicast-marked node when absent. The file is written once
// and never rotated.
func loadOrCreateNode(dir string) ([6]byte, error) {
	var node [6]byte

	path := filepath.Join(dir, NodeFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		raw, derr := hex.DecodeString(strings.TrimSpace(string(data)))
		if derr != nil || len(raw) != 6 {
			return node, fmt.Errorf("node file %s: malformed node id", path)
		}
		copy(node[:], raw)
		return node, nil
	case os.IsNotExist(err):
		node, werr := writeRandomNode(dir, path)
		return node, werr
	default:
		return node, fmt.Errorf("read node file: %w", err)
	}
}

func writeRandomNode(dir, path string) ([6]byte, error) {
	var node [6]byte
	if _, err := rand.Read(node[:]); err != nil {
		return node, fmt.Errorf("generate node id: %w", err)
	}
	// 0xF00000000000 | rand48: the multicast nibble marks this as a
	// synthesized node, never a real interface address.
	node[0] |= 0xF0

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return node, fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(node[:])), 0o644); err != nil {
		return node, fmt.Errorf("write node file: %w", err)
	}
	return node, nil
}
