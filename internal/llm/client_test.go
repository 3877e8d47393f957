package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"servechat/internal/domain"
)

func TestHTTPClientQuery(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody invocationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hola"}}],"usage":{"prompt_tokens":7,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "tok", time.Second, nil)
	reply, err := c.Query(context.Background(), "my-endpoint", []domain.ChatMessage{{Role: "user", Content: "hi"}}, QueryOptions{MaxTokens: 400, Temperature: 0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotPath != "/serving-endpoints/my-endpoint/invocations" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.MaxTokens != 400 || gotBody.Temperature != 0.7 || len(gotBody.Messages) != 1 {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
	if reply.Content != "hola" || reply.Usage.PromptTokens != 7 || reply.Usage.CompletionTokens != 2 {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestHTTPClientStatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{status: http.StatusBadRequest, transient: false},
		{status: http.StatusTooManyRequests, transient: true},
		{status: http.StatusServiceUnavailable, transient: true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tc.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "tok", time.Second, nil)
			_, err := c.Query(context.Background(), "ep", nil, QueryOptions{})
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tc.status {
				t.Fatalf("expected StatusError %d, got %v", tc.status, err)
			}
			if errors.Is(err, ErrTransient) != tc.transient {
				t.Fatalf("transient mismatch for %d", tc.status)
			}
		})
	}
}

func TestHTTPClientNotConfigured(t *testing.T) {
	c := NewHTTPClient("", "", time.Second, nil)
	if _, err := c.Query(context.Background(), "ep", nil, QueryOptions{}); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got %v", err)
	}
	c = NewHTTPClient("https://example.com", "tok", time.Second, nil)
	if _, err := c.Query(context.Background(), "  ", nil, QueryOptions{}); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured for blank endpoint, got %v", err)
	}
}

func TestHTTPClientListReadyEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/serving-endpoints" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"endpoints":[
			{"name":"a","state":"READY"},
			{"name":"b","state":"NOT_READY"},
			{"name":"c","state":{"ready":"READY","config_update":"NOT_UPDATING"}}
		]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok", time.Second, nil)
	names, err := c.ListReadyEndpoints(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Fatalf("unexpected endpoints %v", names)
	}
}
