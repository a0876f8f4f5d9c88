// Package keylock serializes read-modify-write sequences per key.
//
// The record store only guarantees atomicity of a single write; any
// sequence that reads a record, computes, and writes it back must hold
// the key for that record while it runs. Wallet, trial and parental
// mutations lock on the account id.
package keylock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to a key. Lock blocks until the key is
// held and returns a release function.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex is an in-process Locker backed by one mutex per live key.
// Entries are dropped once the last holder releases, so the map only
// grows with concurrent contention, not with the key space.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key. The context is ignored here; only
// distributed implementations can abandon a wait.
func (k *KeyedMutex) Lock(_ context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	release := func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
	return release, nil
}
