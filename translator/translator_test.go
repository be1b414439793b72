package translator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"lingocap/pipeline"
)

func testCfg() Config { return Config{Source: "ru", Target: "en"} }

func TestBuildMessages(t *testing.T) {
	history := []pipeline.ContextEntry{
		{Sequence: 1, SourceText: "раз", Translated: "one"},
		{Sequence: 2, SourceText: "два", Translated: "two"},
	}
	msgs := buildMessages(testCfg(), "три", history)

	if len(msgs) != 6 {
		t.Fatalf("got %d messages, want 6", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "Russian") ||
		!strings.Contains(msgs[0].Content, "English") {
		t.Errorf("system message wrong: %+v", msgs[0])
	}
	want := []chatMessage{
		{Role: "user", Content: "раз"},
		{Role: "assistant", Content: "one"},
		{Role: "user", Content: "два"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "три"},
	}
	for i, w := range want {
		if msgs[i+1] != w {
			t.Errorf("message %d = %+v, want %+v", i+1, msgs[i+1], w)
		}
	}
}

func TestLanguageName(t *testing.T) {
	if got := LanguageName("ru"); got != "Russian" {
		t.Errorf("LanguageName(ru) = %q", got)
	}
	// Unknown codes pass through rather than failing.
	if got := LanguageName("xx"); got != "xx" {
		t.Errorf("LanguageName(xx) = %q", got)
	}
}

func TestParseTranslation(t *testing.T) {
	for _, tt := range []struct {
		in, want string
		wantErr  bool
	}{
		{in: `{"translation": "hello"}`, want: "hello"},
		{in: "```json\n{\"translation\": \"fenced\"}\n```", want: "fenced"},
		{in: `{"translation": ""}`, wantErr: true},
		{in: `not json`, wantErr: true},
	} {
		got, err := parseTranslation(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseTranslation(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTranslation(%q): %v", tt.in, err)
		} else if got != tt.want {
			t.Errorf("parseTranslation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChatTranslator(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write([]byte(`{"choices": [{"message": {"content": "{\"translation\": \"hello world\"}"}}]}`))
	}))
	defer srv.Close()

	tr := &chatTranslator{
		apiURL: srv.URL,
		apiKey: "test-key",
		model:  "gpt-4o-mini",
		name:   "openai",
		schema: true,
		cfg:    testCfg(),
		client: srv.Client(),
		log:    zerolog.Nop(),
	}

	history := []pipeline.ContextEntry{{SourceText: "раз", Translated: "one"}}
	got, err := tr.Translate(context.Background(), "привет мир", history)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "hello world" {
		t.Errorf("Translate = %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotReq.Temperature)
	}
	if len(gotReq.Messages) != 4 {
		t.Errorf("got %d messages, want 4", len(gotReq.Messages))
	}
	if gotReq.ResponseFormat == nil {
		t.Error("response_format not sent")
	}
}

func TestChatTranslatorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	tr := &chatTranslator{
		apiURL: srv.URL, apiKey: "k", model: "m", name: "openai",
		cfg: testCfg(), client: srv.Client(), log: zerolog.Nop(),
	}
	if _, err := tr.Translate(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestOllamaTranslate(t *testing.T) {
	var gotPath string
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotReq)
		w.Write([]byte(`{"message": {"content": "{\"translation\": \"local hello\"}"}, "done": true}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "", testCfg(), zerolog.Nop())
	got, err := o.Translate(context.Background(), "привет", nil)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "local hello" {
		t.Errorf("Translate = %q", got)
	}
	if gotPath != "/api/chat" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.Stream {
		t.Error("stream should be false")
	}
	if gotReq.Model != defaultOllamaModel {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestOllamaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "missing", testCfg(), zerolog.Nop())
	if _, err := o.Translate(context.Background(), "x", nil); err == nil ||
		!strings.Contains(err.Error(), "model not found") {
		t.Errorf("err = %v, want model not found", err)
	}
}
