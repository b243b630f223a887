package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12

	maxNode = (1 << nodeBits) - 1
	seqMask = (1 << seqBits) - 1
	tsMask  = (1 << 41) - 1
)

// Generator hands out snowflake-style ids: 41 bits of milliseconds since
// the epoch, 10 bits node, 12 bits sequence. Ids from one Generator are
// strictly increasing, which the message ordering key relies on.
type Generator struct {
	mu      sync.Mutex
	epochMS int64
	nodeID  int64
	seq     int64
	lastMS  int64
	now     func() int64
}

// NewGenerator builds a generator for the given node id (0..1023; values
// outside the range are folded in).
func NewGenerator(nodeID int64) *Generator {
	return &Generator{
		epochMS: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		nodeID:  nodeID & maxNode,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMS {
		// clock stepped back; keep issuing against the high-water mark
		ms = g.lastMS
	}
	if ms == g.lastMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// sequence space for this millisecond exhausted; borrow the
			// next one rather than stall the caller
			ms = g.lastMS + 1
		}
	} else {
		g.seq = 0
	}
	g.lastMS = ms

	ts := (ms - g.epochMS) & tsMask
	return ts<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}

func (g *Generator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}

var defaultGen = NewGenerator(1)

// Generate issues an id from the process-wide generator.
func Generate() int64 { return defaultGen.Next() }

// GenerateString is Generate formatted as a decimal string, the form the
// stores persist.
func GenerateString() string { return defaultGen.NextString() }
