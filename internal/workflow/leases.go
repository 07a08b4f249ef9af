package workflow

import (
	"fmt"
	"sync"

	"bookforge/internal/services"
)

type leaseUnit string

const (
	unitOutline leaseUnit = "outline"
	unitChapter leaseUnit = "chapter"
	unitImage   leaseUnit = "image"
	unitBatch   leaseUnit = "batch"
)

type leaseKey struct {
	bookID  string
	unit    leaseUnit
	chapter int
}

func (k leaseKey) String() string {
	if k.chapter > 0 {
		return fmt.Sprintf("%s %d of book %s", k.unit, k.chapter, k.bookID)
	}
	return fmt.Sprintf("%s of book %s", k.unit, k.bookID)
}

// leaseTable grants at most one holder per key. Holding a lease never blocks
// work on other keys.
type leaseTable struct {
	mu   sync.Mutex
	held map[leaseKey]struct{}
}

func newLeaseTable() *leaseTable {
	return &leaseTable{held: make(map[leaseKey]struct{})}
}

// acquire takes the lease or fails with ErrConcurrency. The returned release
// func is idempotent.
func (l *leaseTable) acquire(key leaseKey) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, services.Wrap(services.ErrConcurrency, "workflow", "lease", key.String(), nil)
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func (l *leaseTable) isHeld(key leaseKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
