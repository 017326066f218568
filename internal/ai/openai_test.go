package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
)

func TestOpenAIProvider_ToolCallsAndImages(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[
			{"id":"c1","type":"function","function":{"name":"search_web","arguments":"{\"query\":\"go\"}"}}]}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "k", "gpt-test", 5*time.Second, 0)
	out, err := p.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "look", Images: []string{"data:image/png;base64,AAAA"}}},
		Tools:    []ToolSpec{{Name: "search_web", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Name != "search_web" || out.ToolCalls[0].Arguments != `{"query":"go"}` {
		t.Fatalf("unexpected tool calls: %+v", out.ToolCalls)
	}
	if got["tool_choice"] != "auto" {
		t.Fatalf("tool_choice not sent: %v", got["tool_choice"])
	}
	msgs := got["messages"].([]any)
	parts, ok := msgs[0].(map[string]any)["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("image message should be sent as content parts, got %v", msgs[0])
	}
}

func TestOpenAIProvider_ServerErrorIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "k", "m", time.Second, 0)
	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, common.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}
}

func TestOllamaProvider_DropsRemoteImages(t *testing.T) {
	imgs := ollamaImages([]string{"https://x/y.png", "data:image/png;base64,QUJD"})
	if len(imgs) != 1 || imgs[0] != "QUJD" {
		t.Fatalf("unexpected images %v", imgs)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("OpenAI", func(ctx context.Context, model string) (Provider, error) {
		return NewOpenAIProvider("", "k", model, 0, 0), nil
	})
	if _, err := r.Get(context.Background(), "openai", "m"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := r.Get(context.Background(), "nope", "m"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
