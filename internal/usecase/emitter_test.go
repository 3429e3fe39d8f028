package usecase

import (
	"testing"
	"time"

	"CrashCast/internal/domain/models"
)

func TestEmitterDeliversInOrder(t *testing.T) {
	e := NewEmitter(nil)

	var got []int64
	e.Subscribe(func(ev models.PredictionEvent) {
		got = append(got, ev.Round)
	})

	for i := int64(1); i <= 5; i++ {
		e.Emit(models.PredictionEvent{Round: i})
	}
	if len(got) != 5 {
		t.Fatalf("delivered %d events, want 5", len(got))
	}
	for i, r := range got {
		if r != int64(i+1) {
			t.Fatalf("out of order delivery: %v", got)
		}
	}
}

func TestEmitterFansOutToAllSubscribers(t *testing.T) {
	e := NewEmitter(nil)

	var a, b int
	e.Subscribe(func(models.PredictionEvent) { a++ })
	e.Subscribe(func(models.PredictionEvent) { b++ })

	e.Emit(models.PredictionEvent{Round: 1})
	e.Emit(models.PredictionEvent{Round: 2})

	if a != 2 || b != 2 {
		t.Fatalf("fan-out incomplete: a=%d b=%d", a, b)
	}
}

func TestEmitterUnsubscribe(t *testing.T) {
	e := NewEmitter(nil)

	var n int
	id := e.Subscribe(func(models.PredictionEvent) { n++ })
	e.Emit(models.PredictionEvent{Round: 1})
	e.Unsubscribe(id)
	e.Emit(models.PredictionEvent{Round: 2})

	if n != 1 {
		t.Fatalf("unsubscribed callback still invoked, n=%d", n)
	}
	if e.Len() != 0 {
		t.Fatalf("subscriber count = %d, want 0", e.Len())
	}
}

func TestEmitterIsolatesPanickingSubscriber(t *testing.T) {
	e := NewEmitter(nil)

	var after int
	e.Subscribe(func(models.PredictionEvent) { panic("boom") })
	e.Subscribe(func(models.PredictionEvent) { after++ })

	e.Emit(models.PredictionEvent{Round: 1})
	if after != 1 {
		t.Fatalf("panic in one subscriber starved the next")
	}
}

func TestEmitterAllowsReentrantSubscribers(t *testing.T) {
	e := NewEmitter(nil)

	var fired, lateFired int
	var id int
	id = e.Subscribe(func(models.PredictionEvent) {
		fired++
		e.Unsubscribe(id)
		e.Subscribe(func(models.PredictionEvent) { lateFired++ })
	})

	done := make(chan struct{})
	go func() {
		e.Emit(models.PredictionEvent{Round: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a re-entrant subscriber")
	}

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	e.Emit(models.PredictionEvent{Round: 2})
	if fired != 1 {
		t.Fatalf("unsubscribed callback fired again")
	}
	if lateFired != 1 {
		t.Fatalf("lateFired = %d, want 1", lateFired)
	}
}
