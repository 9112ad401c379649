package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameLocks(t *testing.T) {
	t.Run("same name is serialized", func(t *testing.T) {
		locks := newNameLocks()
		var (
			wg      sync.WaitGroup
			inside  int
			maxSeen int
			mu      sync.Mutex
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.lock("same")
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				mu.Lock()
				inside--
				mu.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})
	t.Run("different names do not block each other", func(t *testing.T) {
		locks := newNameLocks()
		unlockA := locks.lock("a")
		defer unlockA()
		locked := make(chan struct{})
		go func() {
			unlockB := locks.lock("b")
			unlockB()
			close(locked)
		}()
		select {
		case <-locked:
		case <-time.After(5 * time.Second):
			t.Fatal("locking b waited for a")
		}
	})
	t.Run("released entries are dropped", func(t *testing.T) {
		locks := newNameLocks()
		unlock := locks.lock("a")
		assert.Len(t, locks.locks, 1)
		unlock()
		assert.Empty(t, locks.locks)
	})
}
