package bus

import (
	"context"
	"testing"
	"time"
)

func TestTryPublishFullQueue(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryPublish(Envelope{Kind: KindDBEvent}); err != nil {
		t.Fatalf("publish into empty queue: %v", err)
	}
	if err := q.TryPublish(Envelope{Kind: KindDBEvent}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPublishAfterClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	if err := q.TryPublish(Envelope{}); err != ErrQueueClosed {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestRunDrainsInOrder(t *testing.T) {
	q := NewQueue(4)
	for _, target := range []string{"a", "b", "c"} {
		if err := q.TryPublish(Envelope{Kind: KindStream, Target: target}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []string
	q.Run(ctx, func(e Envelope) {
		got = append(got, e.Target)
	})

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected ordered drain, got %v", got)
	}
}
