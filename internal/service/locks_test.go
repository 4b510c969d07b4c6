package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAccountLocks_SerializesSameAccount(t *testing.T) {
	locks := newAccountLocks()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("acc-1")
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if n := locks.size(); n != 0 {
		t.Errorf("lock table not cleaned up: %d entries", n)
	}
}

func TestAccountLocks_IndependentAccounts(t *testing.T) {
	locks := newAccountLocks()

	unlockA := locks.Lock("acc-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("acc-b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on acc-b blocked behind acc-a")
	}
}
