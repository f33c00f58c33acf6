package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequest_GetDecodesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/simple/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "ethereum" {
			t.Errorf("ids = %q", got)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing default header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ethereum":{"usd":3120.5}}`)
	}))
	defer server.Close()

	client, err := NewInstrumentedClient(
		WithProviderName("coingecko"),
		WithBaseURL(server.URL),
		WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		t.Fatalf("NewInstrumentedClient: %v", err)
	}

	var out map[string]map[string]float64
	_, err = client.NewRequest(WithLabels(NewLabel("feed", "ethereum"))).
		SetQueryParam("ids", "ethereum").
		SetResult(&out).
		Get(context.Background(), "/api/v3/simple/price")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out["ethereum"]["usd"] != 3120.5 {
		t.Fatalf("decoded = %v", out)
	}
}

func TestRequest_DefaultErrorHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewInstrumentedClient()
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.NewRequest().Get(context.Background(), server.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", statusErr.StatusCode)
	}
	if resp == nil || !resp.IsError() {
		t.Error("response should be returned and flagged as error")
	}
}

func TestRequest_DecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>not json</html>")
	}))
	defer server.Close()

	client, err := NewInstrumentedClient()
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]any
	if _, err := client.NewRequest().SetResult(&out).Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRequest_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"text":"hi"}` {
			t.Errorf("body = %s", body)
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	client, err := NewInstrumentedClient(WithBaseURL(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		OK bool `json:"ok"`
	}
	if _, err := client.NewRequest().SetBody(map[string]string{"text": "hi"}).SetResult(&out).Post(context.Background(), "/send"); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !out.OK {
		t.Error("expected ok=true")
	}
}
