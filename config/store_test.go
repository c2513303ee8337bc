package config

import (
	"sync"
	"testing"
)

func TestStore_LoadReturnsInitial(t *testing.T) {
	cfg := Default()
	s := NewStore(cfg)

	if got := s.Load(); got != cfg {
		t.Errorf("Load() = %p, want the seeded snapshot %p", got, cfg)
	}
}

func TestStore_SwapPublishes(t *testing.T) {
	s := NewStore(Default())

	next := Default()
	next.DelayMin = next.DelayMin / 2
	s.Swap(next)

	if got := s.Load(); got != next {
		t.Error("Load() should observe the swapped snapshot")
	}
}

// TestStore_ConcurrentReaders has many goroutines loading while the
// writer swaps; every observed snapshot must be fully formed (one of
// the two published configs, never a torn mix).
func TestStore_ConcurrentReaders(t *testing.T) {
	a := Default()
	b := Default()
	b.Port = 2022
	b.MaxClients = 1

	s := NewStore(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got := s.Load()
				if got != a && got != b {
					t.Error("observed a snapshot that was never published")
					return
				}
			}
		}()
	}

	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			s.Swap(b)
		} else {
			s.Swap(a)
		}
	}
	close(stop)
	wg.Wait()
}
