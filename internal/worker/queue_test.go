package worker

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := newQueue(0)
	for i := uint64(0); i < 5; i++ {
		if err := q.push(Request{ID: i}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := uint64(0); i < 5; i++ {
		r, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if r.ID != i {
			t.Errorf("pop order broken: got id %d, want %d", r.ID, i)
		}
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newQueue(0)
	done := make(chan Request, 1)
	go func() {
		r, ok := q.pop()
		if !ok {
			return
		}
		done <- r
	}()

	select {
	case <-done:
		t.Fatal("pop returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	if err := q.push(Request{ID: 42}); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case r := <-done:
		if r.ID != 42 {
			t.Errorf("got id %d, want 42", r.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("pop never returned after push")
	}
}

func TestQueue_CloseDrainsThenReturnsFalse(t *testing.T) {
	q := newQueue(0)
	q.push(Request{ID: 1})
	q.close()

	r, ok := q.pop()
	if !ok || r.ID != 1 {
		t.Fatalf("expected to drain the queued item first, got %+v, %v", r, ok)
	}
	if _, ok := q.pop(); ok {
		t.Fatal("expected pop on an empty closed queue to return false")
	}
}

func TestQueue_PushAfterCloseFails(t *testing.T) {
	q := newQueue(0)
	q.close()
	if err := q.push(Request{ID: 1}); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestQueue_BoundedBlocksPushUntilSpace(t *testing.T) {
	q := newQueue(1)
	if err := q.push(Request{ID: 1}); err != nil {
		t.Fatalf("first push: %v", err)
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.push(Request{ID: 2})
	}()

	select {
	case <-pushed:
		t.Fatal("bounded push returned before the queue had room")
	case <-time.After(20 * time.Millisecond):
	}

	q.pop()

	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("second push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("bounded push never unblocked after a pop freed space")
	}
}

func TestQueue_ConcurrentPushPop(t *testing.T) {
	q := newQueue(0)
	const n = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < n; i++ {
			q.push(Request{ID: i})
		}
	}()

	seen := make(map[uint64]bool)
	for i := 0; i < n; i++ {
		r, ok := q.pop()
		if !ok {
			t.Fatalf("pop %d: unexpected close", i)
		}
		seen[r.ID] = true
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("expected %d distinct ids, saw %d", n, len(seen))
	}
}
