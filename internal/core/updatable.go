package core

import (
	"fmt"

	"github.com/comalice/blendx/internal/primitives"
)

// Updatable is run by the Graph once per early or late pass while it is
// registered. A returned error is reported to the Graph's error handler;
// a *primitives.ProgrammerError aborts the update instead.
type Updatable interface {
	Update() error
}

// FuncUpdatable adapts a function to Updatable. Use NewUpdatable so the
// value is a pointer and can be registered and cancelled.
type FuncUpdatable struct {
	name string
	fn   func() error
}

// NewUpdatable wraps fn. name identifies it in error reports.
func NewUpdatable(name string, fn func() error) *FuncUpdatable {
	return &FuncUpdatable{name: name, fn: fn}
}

func (u *FuncUpdatable) Update() error { return u.fn() }

func (u *FuncUpdatable) Name() string { return u.name }

func updatableName(u Updatable) string {
	if n, ok := u.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", u)
}

// indexedList is an unordered set with O(1) add and remove that can be
// modified while it is being iterated. Iteration runs from the most recently
// added entry backwards; removal swaps the last entry into the hole.
type indexedList[T comparable] struct {
	items     []T
	index     map[T]int
	cursor    int
	iterating bool
}

func newIndexedList[T comparable]() indexedList[T] {
	return indexedList[T]{index: make(map[T]int), cursor: -1}
}

func (l *indexedList[T]) len() int { return len(l.items) }

func (l *indexedList[T]) contains(v T) bool {
	_, ok := l.index[v]
	return ok
}

func (l *indexedList[T]) add(v T) bool {
	if _, ok := l.index[v]; ok {
		return false
	}
	l.index[v] = len(l.items)
	l.items = append(l.items, v)
	return true
}

func (l *indexedList[T]) remove(v T) bool {
	i, ok := l.index[v]
	if !ok {
		return false
	}
	delete(l.index, v)
	last := len(l.items) - 1
	c := l.cursor
	if l.iterating && i < c && c <= last {
		// i is still pending. Keep [0, c-1) pending: move the last pending
		// entry into the hole, the current entry down one slot and the
		// last entry into the current slot. Once the current entry itself
		// was removed from the end, c is past the end and every entry
		// below it is pending, so a plain swap keeps that.
		l.move(c-1, i)
		l.move(c, c-1)
		l.move(last, c)
		l.cursor = c - 1
	} else {
		l.move(last, i)
	}
	var zero T
	l.items[last] = zero
	l.items = l.items[:last]
	return true
}

// move copies the entry at from into to and records its new index.
func (l *indexedList[T]) move(from, to int) {
	if from == to {
		return
	}
	v := l.items[from]
	l.items[to] = v
	if _, ok := l.index[v]; ok {
		l.index[v] = to
	}
}

// each calls fn for every entry until fn returns false. Entries added during
// the walk are visited on the next walk.
func (l *indexedList[T]) each(op string, fn func(T) bool) error {
	if l.iterating {
		return primitives.Misuse(op, primitives.ErrReentrantUpdate, "list is already being iterated")
	}
	l.iterating = true
	defer func() {
		l.iterating = false
		l.cursor = -1
	}()
	for l.cursor = len(l.items) - 1; l.cursor >= 0; l.cursor-- {
		if l.cursor >= len(l.items) {
			continue
		}
		if !fn(l.items[l.cursor]) {
			return nil
		}
	}
	return nil
}

func (l *indexedList[T]) clear() {
	clear(l.index)
	clear(l.items)
	l.items = l.items[:0]
}
