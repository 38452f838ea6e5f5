package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/gaffer/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	req := model.NewRunRequest("api")
	if !q.Enqueue(ctx, req) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != req.ID || got.Reason != "api" {
		t.Errorf("expected %s/api, got %s/%s", req.ID, got.ID, got.Reason)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !q.Enqueue(ctx, model.NewRunRequest("schedule")) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}
	if q.Enqueue(ctx, model.NewRunRequest("api")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_DefaultCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	if q.Capacity() != defaultQueueCapacity {
		t.Errorf("expected default capacity %d, got %d", defaultQueueCapacity, q.Capacity())
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if !q.Enqueue(ctx, model.NewRunRequest(fmt.Sprintf("producer-%d", id))) {
					t.Errorf("producer %d: enqueue %d rejected", id, j)
				}
			}
		}(i)
	}
	wg.Wait()

	if l := q.Len(ctx); l != 100 {
		t.Fatalf("expected length 100, got %d", l)
	}

	ids := make(map[string]struct{})
	ch := q.Dequeue(ctx)
	for i := 0; i < 100; i++ {
		select {
		case r := <-ch:
			ids[r.ID] = struct{}{}
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d requests", i)
		}
	}
	if len(ids) != 100 {
		t.Errorf("expected 100 distinct requests, got %d", len(ids))
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if !q.Enqueue(ctx, model.NewRunRequest("api")) {
		t.Fatal("expected enqueue to succeed")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, model.NewRunRequest("api")) {
		t.Error("expected enqueue after close to fail")
	}

	// pending requests drain before the channel closes
	n := 0
	for range q.Dequeue(ctx) {
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 drained request, got %d", n)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	if !q.Enqueue(context.Background(), model.NewRunRequest("api")) {
		t.Fatal("expected enqueue to succeed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if q.Enqueue(ctx, model.NewRunRequest("api")) {
		t.Error("expected enqueue to fail")
	}
}
