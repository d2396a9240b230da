package session

import (
	"context"
	"errors"
	"testing"
)

func TestLoop_CallRunsInOrder(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var order []int
	for i := 0; i < 3; i++ {
		l.Post(func() { order = append(order, i) })
	}
	if err := l.Call(ctx, func() { order = append(order, 99) }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	want := []int{0, 1, 2, 99}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()

	if l.Post(func() {}) {
		t.Error("Post() after stop = true")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Call() after stop error = %v, want ErrLoopStopped", err)
	}
}
