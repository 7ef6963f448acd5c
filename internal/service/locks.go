package service

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SessionLocks serializes status and pointer writes per session within this
// process. Sessions are few and long-lived, so entries are never evicted.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewSessionLocks creates an empty lock table.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the mutex of id and returns its release func.
func (l *SessionLocks) Lock(id uuid.UUID) func() {
	m := l.mutex(id)
	m.Lock()
	return m.Unlock
}

// LockAll acquires the mutexes of every distinct id in byte order, so two
// callers with overlapping sets cannot deadlock.
func (l *SessionLocks) LockAll(ids ...uuid.UUID) func() {
	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	held := make([]*sync.Mutex, len(sorted))
	for i, id := range sorted {
		held[i] = l.mutex(id)
		held[i].Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *SessionLocks) mutex(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
