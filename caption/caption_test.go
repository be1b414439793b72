package caption

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

func seg(seq int64, text string) pipeline.TranslatedSegment {
	return pipeline.TranslatedSegment{
		Sequence:   seq,
		Captured:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		SourceText: "src" + text,
		Translated: text,
		Latency:    250 * time.Millisecond,
	}
}

func TestConsoleDisplay(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)

	c.Display(seg(1, "hello world"))
	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("output missing caption: %q", out)
	}
	if strings.Contains(out, "srchello") {
		t.Errorf("source shown despite showSource=false: %q", out)
	}
}

func TestConsoleShowsSourceAndMarkers(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	low := seg(1, "unsure")
	low.LowConfidence = true
	c.Display(low)

	failed := seg(2, pipeline.FailureText)
	failed.Failed = true
	c.Display(failed)

	out := buf.String()
	if !strings.Contains(out, "(?)") {
		t.Errorf("low-confidence marker missing: %q", out)
	}
	if !strings.Contains(out, "srcunsure") {
		t.Errorf("source line missing: %q", out)
	}
	if !strings.Contains(out, pipeline.FailureText) {
		t.Errorf("failure sentinel missing: %q", out)
	}
}

type recordSink struct {
	mu  sync.Mutex
	got []pipeline.TranslatedSegment
}

func (r *recordSink) Display(ts pipeline.TranslatedSegment) {
	r.mu.Lock()
	r.got = append(r.got, ts)
	r.mu.Unlock()
}

func (r *recordSink) segments() []pipeline.TranslatedSegment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.TranslatedSegment{}, r.got...)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	m := Multi{a, b}
	m.Display(seg(1, "x"))
	if len(a.segments()) != 1 || len(b.segments()) != 1 {
		t.Error("segment not delivered to every sink")
	}
}

func TestBufferedPreservesOrder(t *testing.T) {
	rec := &recordSink{}
	b := NewBuffered(rec, 8, zerolog.Nop())

	for i := int64(0); i < 5; i++ {
		b.Display(seg(i, "x"))
	}
	b.Close()

	got := rec.segments()
	if len(got) != 5 {
		t.Fatalf("delivered %d, want 5", len(got))
	}
	for i, ts := range got {
		if ts.Sequence != int64(i) {
			t.Errorf("position %d: seq %d", i, ts.Sequence)
		}
	}
}

type blockingSink struct {
	release chan struct{}
	rec     recordSink
}

func (s *blockingSink) Display(ts pipeline.TranslatedSegment) {
	<-s.release
	s.rec.Display(ts)
}

func TestBufferedDropsOldestWhenFull(t *testing.T) {
	blocked := &blockingSink{release: make(chan struct{})}
	b := NewBuffered(blocked, 2, zerolog.Nop())

	// One segment is stuck inside Display; overfill the queue behind it.
	for i := int64(0); i < 6; i++ {
		b.Display(seg(i, "x"))
	}
	close(blocked.release)
	b.Close()

	got := blocked.rec.segments()
	if len(got) == 6 {
		t.Fatal("expected drops with a full queue")
	}
	last := got[len(got)-1]
	if last.Sequence != 5 {
		t.Errorf("newest segment lost: last seq = %d", last.Sequence)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Sequence <= got[i-1].Sequence {
			t.Errorf("order violated: %d after %d", got[i].Sequence, got[i-1].Sequence)
		}
	}
}

func TestWSServerBroadcast(t *testing.T) {
	ws := NewWSServer("", zerolog.Nop())
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The upgrade handler registers the client before Display can see it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ws.mu.Lock()
		n := len(ws.clients)
		ws.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s := seg(7, "broadcast me")
	s.LowConfidence = true
	ws.Display(s)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Seq != 7 || msg.Text != "broadcast me" || !msg.LowConfidence {
		t.Errorf("message = %+v", msg)
	}
	if msg.LatencyMs != 250 {
		t.Errorf("latency_ms = %d", msg.LatencyMs)
	}
}

func TestWSServerDropsSlowViewer(t *testing.T) {
	ws := NewWSServer("", zerolog.Nop())
	srv := httptest.NewServer(ws.Handler())
	defer srv.Close()
	defer ws.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		ws.mu.Lock()
		n := len(ws.clients)
		ws.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Never read from conn; eventually the send buffer fills and the
	// viewer is dropped instead of stalling Display.
	for i := int64(0); i < 1000; i++ {
		ws.Display(seg(i, strings.Repeat("long caption text ", 50)))
	}

	ws.mu.Lock()
	n := len(ws.clients)
	ws.mu.Unlock()
	if n != 0 {
		t.Errorf("slow viewer still registered (%d clients)", n)
	}
}
