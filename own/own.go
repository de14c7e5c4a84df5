// Package own provides the runtime half of register ownership.
//
// Go has no move-only types, so the handles minted when a peripheral is
// split are backed by two guards: Once, which lets a resource be claimed a
// single time, and Excl, which hands out exclusive, temporary loans and
// panics if two loans overlap.
package own

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrConsumed = errors.New("already consumed")

// NoCopy may be embedded in handle structs so that go vet's copylocks
// check reports accidental copies.
type NoCopy struct{}

func (*NoCopy) Lock()   {}
func (*NoCopy) Unlock() {}

// Once is a take-once cell. The zero value is unclaimed.
type Once struct {
	taken atomic.Bool
}

// Take claims the cell. It returns an error wrapping ErrConsumed for every
// call after the first.
func (o *Once) Take(what string) error {
	if !o.taken.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", what, ErrConsumed)
	}
	return nil
}

func (o *Once) Taken() bool {
	return o.taken.Load()
}

// Excl guards one register group. The zero value is free.
type Excl struct {
	name string
	busy atomic.Bool
}

func NewExcl(name string) *Excl {
	return &Excl{name: name}
}

func (e *Excl) Name() string {
	return e.name
}

// Loan runs f with exclusive access to the guarded registers. A second
// loan taken while f is still running, from any goroutine, panics.
func (e *Excl) Loan(f func()) {
	if !e.busy.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("own: concurrent access to %s", e.name))
	}
	defer e.busy.Store(false)
	f()
}
