package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/postflow/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	event1 := model.PostPublishedEvent{PostID: "p1", AuthorID: "u1"}
	if !q.Enqueue(ctx, event1) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	event := <-q.Dequeue(ctx)
	if event.PostID != "p1" {
		t.Errorf("expected p1, got %v", event.PostID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !q.Enqueue(ctx, model.PostPublishedEvent{PostID: fmt.Sprintf("p%d", i)}) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}

	done := make(chan bool)
	go func() { done <- q.Enqueue(ctx, model.PostPublishedEvent{PostID: "overflow"}) }()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected enqueue to fail when full")
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	_ = q.Enqueue(ctx, model.PostPublishedEvent{PostID: "p1"})
	_ = q.Enqueue(ctx, model.PostPublishedEvent{PostID: "p2"})
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, model.PostPublishedEvent{PostID: "late"}) {
		t.Error("expected enqueue after close to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to be a no-op, got %v", err)
	}

	var got []string
	for e := range q.Dequeue(ctx) {
		got = append(got, e.PostID)
	}
	if len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Errorf("expected [p1 p2] drained in order, got %v", got)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, model.PostPublishedEvent{PostID: "p1"}) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}
