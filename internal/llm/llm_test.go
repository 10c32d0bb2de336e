package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatClientSendsSystemAndUserMessages(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello  "}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(Config{APIBase: srv.URL + "/", APIKey: "secret", Model: "m1"}, srv.Client())
	out, err := c.Complete(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected trimmed content, got %q", out)
	}
	if got.Model != "m1" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "usr" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
}

func TestChatClientErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewChatClient(Config{}, nil).Complete(context.Background(), "", "x"); err == nil {
		t.Fatalf("expected missing key error")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "empty") {
			_, _ = w.Write([]byte(`{"choices":[]}`))
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewChatClient(Config{APIBase: srv.URL, APIKey: "k"}, srv.Client()).Complete(context.Background(), "", "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected http status error, got %v", err)
	}
	_, err = NewChatClient(Config{APIBase: srv.URL, APIKey: "empty"}, srv.Client()).Complete(context.Background(), "", "x")
	if err == nil {
		t.Fatalf("expected empty response error")
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{Provider: "carrier-pigeon"}, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	c, err := New(context.Background(), Config{Provider: "groq"}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, ok := c.(*ChatClient); !ok {
		t.Fatalf("expected chat client, got %T", c)
	}
}

func TestFirstObject(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`Sure! Here it is: {"a": {"b": 1}} hope that helps {"c":2}`, `{"a": {"b": 1}}`, true},
		{`{"text": "brace } inside \" quote {"}`, `{"text": "brace } inside \" quote {"}`, true},
		{`{"broken": {"inner": 1}`, `{"inner": 1}`, true},
		{`no json here`, "", false},
		{`{ unterminated`, "", false},
	}
	for _, tc := range cases {
		got, ok := FirstObject(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("FirstObject(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDecodeObjectRecoveryOrder(t *testing.T) {
	t.Parallel()

	var v map[string]any
	if err := DecodeObject("The answer is {\"score\": 72} as requested.", &v); err != nil {
		t.Fatalf("DecodeObject error: %v", err)
	}
	if v["score"] != float64(72) {
		t.Fatalf("unexpected decode: %v", v)
	}

	var arr []string
	if err := DecodeObject("```json\n[\"a\", \"b\"]\n```", &arr); err != nil {
		t.Fatalf("DecodeObject whole-output error: %v", err)
	}
	if len(arr) != 2 {
		t.Fatalf("unexpected array: %v", arr)
	}

	var none map[string]any
	if err := DecodeObject("I could not find anything.", &none); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}
