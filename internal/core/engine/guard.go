package engine

import (
	"errors"
	"sync/atomic"
)

// ErrReentrant is returned when an entry point is invoked while another
// state-mutating operation is already in flight, typically through a
// callback from a collaborator call.
var ErrReentrant = errors.New("operation already in flight")

// Guard is a process-wide in-flight flag shared by every state-mutating
// entry point. It never blocks: a nested entry fails immediately rather
// than deadlocking on the engine mutex.
type Guard struct {
	busy atomic.Bool
}

// NewGuard creates an idle guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Enter marks an operation in flight, failing with ErrReentrant if one
// already is.
func (g *Guard) Enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	return nil
}

// Exit clears the in-flight flag.
func (g *Guard) Exit() {
	g.busy.Store(false)
}
