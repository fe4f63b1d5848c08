package lockmap

import (
	"sync"
	"testing"
	"time"
)

func TestMap_SerializesSameKey(t *testing.T) {
	var m Map
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("apr_1")
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if m.Len() != 0 {
		t.Fatalf("expected released keys to be forgotten, have %d", m.Len())
	}
}

func TestMap_DistinctKeysDoNotBlock(t *testing.T) {
	var m Map
	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("b")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestMap_UnlockIsIdempotent(t *testing.T) {
	var m Map
	unlock := m.Lock("k")
	unlock()
	unlock() // must not panic
	if m.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", m.Len())
	}
}
