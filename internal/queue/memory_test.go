package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_PopOrder(t *testing.T) {
	q := NewMemory()
	q.Push([]byte("a"))
	q.Push([]byte("b"))

	ctx := context.Background()
	first, ok, err := q.Pop(ctx, time.Second)
	if err != nil || !ok || string(first) != "a" {
		t.Fatalf("pop = %q ok=%v err=%v", first, ok, err)
	}
	second, ok, _ := q.Pop(ctx, time.Second)
	if !ok || string(second) != "b" {
		t.Fatalf("pop = %q ok=%v", second, ok)
	}
}

func TestMemoryQueue_PopTimeout(t *testing.T) {
	q := NewMemory()
	start := time.Now()
	_, ok, err := q.Pop(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected timeout with nothing queued")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("pop returned before the poll timeout")
	}
}

func TestMemoryQueue_PopCancelled(t *testing.T) {
	q := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := q.Pop(ctx, time.Second); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestMemoryQueue_PopUnblocksOnPush(t *testing.T) {
	q := NewMemory()
	got := make(chan []byte, 1)
	go func() {
		raw, ok, _ := q.Pop(context.Background(), 5*time.Second)
		if ok {
			got <- raw
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push([]byte("late"))

	select {
	case raw := <-got:
		if string(raw) != "late" {
			t.Errorf("pop = %q", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock on push")
	}
}
