package handle

import (
	"fmt"
	"sync/atomic"
)

var executorSeq atomic.Uint64

// Executor is the identity an engine is bound to. Every engine operation
// except posting user events must present the executor that created the
// engine. An executor must not issue calls from two goroutines at once.
type Executor struct {
	id   uint64
	name string
}

// NewExecutor returns a new executor identity.
func NewExecutor(name string) *Executor {
	return &Executor{id: executorSeq.Add(1), name: name}
}

// ID returns the executor's unique number.
func (e *Executor) ID() uint64 {
	if e == nil {
		return 0
	}
	return e.id
}

// String returns a printable identity.
func (e *Executor) String() string {
	if e == nil {
		return "executor(nil)"
	}
	if e.name == "" {
		return fmt.Sprintf("executor(%d)", e.id)
	}
	return fmt.Sprintf("%s(%d)", e.name, e.id)
}
