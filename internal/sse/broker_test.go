package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/raido/internal/events"
)

func TestFrameExactBytes(t *testing.T) {
	raw, err := Frame("note.created", map[string]string{"noteId": "n1"})
	if err != nil {
		t.Fatal(err)
	}
	want := "event: note.created\ndata: {\"noteId\":\"n1\"}\n\n"
	if string(raw) != want {
		t.Errorf("frame = %q, want %q", raw, want)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(events.New(events.NoteCreated, map[string]string{"noteId": "a"}))

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"noteId":"a"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestAllSubscribersReceiveIdenticalFrame(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(events.New(events.NoteCreated, map[string]string{"noteId": "n1", "projectId": "p1"}))

	read := func(ch chan []byte) string {
		t.Helper()
		select {
		case msg := <-ch:
			return string(msg)
		case <-time.After(time.Second):
			t.Fatal("timeout")
			return ""
		}
	}

	m1, m2 := read(ch1), read(ch2)
	if m1 != m2 {
		t.Errorf("subscribers got different frames: %q vs %q", m1, m2)
	}
	if strings.Count(m1, "event:") != 1 {
		t.Errorf("expected exactly one event frame, got %q", m1)
	}
}

func TestPingKeepAlive(t *testing.T) {
	b := NewBroker(30 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		if !strings.HasPrefix(string(msg), "event: ping\n") {
			t.Errorf("frame = %q, want ping", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no ping received")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(events.New(events.NoteUpdated, map[string]string{"noteId": "x"}))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill the per-client buffer (capacity 64) and then some; a stalled
	// consumer must never block the broker loop or other publishers.
	for i := 0; i < 70; i++ {
		b.Publish(events.New("test", map[string]string{"i": "x"}))
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Hour)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-op after close.
	b.Publish(events.New(events.NoteUpdated, map[string]string{"noteId": "x"}))
}
