package sim

import (
	"strconv"

	"github.com/rs/xid"
)

// IDGenerator hands out the IDs of events, traps and processes.
type IDGenerator interface {
	Generate() string
}

// NewSequentialIDGenerator returns a generator that emits "1", "2", ... so
// that replaying the same schedule yields the same IDs.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewXIDGenerator returns a generator of globally unique IDs. The IDs are not
// reproducible across runs; use it when traces from several simulations are
// merged into one database.
func NewXIDGenerator() IDGenerator {
	return xidGenerator{}
}

// The kernel is single threaded, so no atomics are needed here.
type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	g.nextID++
	return strconv.FormatUint(g.nextID, 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
