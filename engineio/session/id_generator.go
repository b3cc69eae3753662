package session

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator generates new session id. Default behavior is a random uuid.
// If you need custom session id, for example using local ip as prefix, you can
// implement IDGenerator and set it in the server options.
type IDGenerator interface {
	NewID() string
}

// DefaultIDGenerator returns random uuids.
type DefaultIDGenerator struct{}

func (DefaultIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceIDGenerator returns increasing numbers in base 36.
type SequenceIDGenerator struct {
	ID uint64
}

func (g *SequenceIDGenerator) NewID() string {
	id := atomic.AddUint64(&g.ID, 1)
	return strconv.FormatUint(id, 36)
}
