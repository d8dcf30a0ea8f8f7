package datalake

import (
	"sync/atomic"
)

// INexter is the interface for getting sequential ids.
type INexter interface {
	Next() uint64
	Last() uint64
}

// Nexter hands out sequential ids. It is threadsafe.
type Nexter struct {
	id *uint64
}

// NexterOption is a functional option for NewNexter.
type NexterOption func(n *Nexter)

// NexterStartFrom makes the first id returned by Next be s.
func NexterStartFrom(s uint64) NexterOption {
	return func(n *Nexter) {
		*n.id = s
	}
}

// NewNexter creates a Nexter which starts from 0 unless configured otherwise.
func NewNexter(opts ...NexterOption) *Nexter {
	var id uint64
	n := &Nexter{
		id: &id,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Next returns the next id.
func (n *Nexter) Next() (nextID uint64) {
	nextID = atomic.AddUint64(n.id, 1)
	return nextID - 1
}

// Last returns the most recently returned id.
func (n *Nexter) Last() (lastID uint64) {
	lastID = atomic.LoadUint64(n.id) - 1
	return
}
