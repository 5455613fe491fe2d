package eventbus

import (
	"context"
	"testing"
	"time"

	"quorum/internal/council"
)

func ev(session string, seq uint64, t council.EventType) council.Event {
	return council.Event{Type: t, SessionID: session, Seq: seq, Timestamp: time.Now()}
}

func TestBusDeliversInOrder(t *testing.T) {
	b := New(context.Background(), Options{})
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(ev("s1", uint64(i), council.EventPhase))
	}

	for i := 1; i <= 5; i++ {
		select {
		case got := <-ch:
			if got.Seq != uint64(i) {
				t.Fatalf("event %d has seq %d", i, got.Seq)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusSessionFilter(t *testing.T) {
	b := New(context.Background(), Options{})
	defer b.Close()

	ch, cancel := b.SubscribeSession("s2")
	defer cancel()

	b.Publish(ev("s1", 1, council.EventPhase))
	b.Publish(ev("s2", 1, council.EventProposal))

	select {
	case got := <-ch:
		if got.SessionID != "s2" {
			t.Fatalf("got event for session %s", got.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected second event: %+v", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBusSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New(context.Background(), Options{SubscriberBuffer: 1, HistorySize: -1})
	defer b.Close()

	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(ev("s1", uint64(i+1), council.EventPhase))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	published, dropped := b.Stats()
	if published != 100 {
		t.Errorf("published = %d, want 100", published)
	}
	if dropped == 0 {
		t.Error("expected drops with a full buffer")
	}
}

func TestBusReplay(t *testing.T) {
	b := New(context.Background(), Options{HistorySize: 4})
	defer b.Close()

	for i := 1; i <= 6; i++ {
		session := "s1"
		if i%2 == 0 {
			session = "s2"
		}
		b.Publish(ev(session, uint64(i), council.EventPhase))
	}

	// Ring keeps the last 4: seqs 3..6.
	all := b.Replay("")
	if len(all) != 4 || all[0].Seq != 3 || all[3].Seq != 6 {
		t.Fatalf("Replay(all) = %+v", all)
	}

	s2 := b.Replay("s2")
	if len(s2) != 2 || s2[0].Seq != 4 || s2[1].Seq != 6 {
		t.Fatalf("Replay(s2) = %+v", s2)
	}
}

func TestBusCloseUnblocksSubscribers(t *testing.T) {
	b := New(context.Background(), Options{})
	ch, _ := b.Subscribe()

	b.Close()
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}

	// Publishing after close is a no-op.
	b.Publish(ev("s1", 1, council.EventPhase))

	// Late subscribers get a closed channel immediately.
	late, cancel := b.Subscribe()
	cancel()
	if _, ok := <-late; ok {
		t.Fatal("late subscription should be closed")
	}
}

func TestBusContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New(ctx, Options{})
	ch, _ := b.Subscribe()

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected close, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("bus did not close on context cancellation")
	}
}
