package streamfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/oracle-resolver/business/feed/domain"
	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func newProvider(t *testing.T, url string) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		Name:       "eth-stream",
		URL:        url,
		Subscribe:  []byte(`{"method":"SUBSCRIBE","params":["ethusdt@aggTrade"],"id":1}`),
		Extract:    "double(body.p)",
		MaxAge:     30 * time.Second,
		Confidence: domain.ConfidencePolicy{Base: 90},
	}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestProvider_ReceivesPrice(t *testing.T) {
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		_, sub, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		subscribed <- string(sub)

		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"result":null,"id":1}`))
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"e":"aggTrade","p":"3150.25"}`))
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p := newProvider(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer p.Close()

	select {
	case sub := <-subscribed:
		if !strings.Contains(sub, "ethusdt@aggTrade") {
			t.Errorf("subscribe message = %s", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe message")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		r, err := p.Read(context.Background())
		if err == nil {
			if v, _ := r.Value.Number(); v != 3150.25 || r.Confidence != 90 {
				t.Errorf("reading = %s", r)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no price received: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestProvider_NoDataAndStale(t *testing.T) {
	p := newProvider(t, "ws://127.0.0.1:1")

	_, err := p.Read(context.Background())
	if !apperror.HasCode(err, apperror.CodeFeedUnavailable) {
		t.Fatalf("expected FEED_UNAVAILABLE, got %v", err)
	}

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.handleMessage(context.Background(), []byte(`{"p":"3000"}`))

	if _, err := p.Read(context.Background()); err != nil {
		t.Fatalf("fresh read: %v", err)
	}

	now = now.Add(31 * time.Second)
	_, err = p.Read(context.Background())
	if !apperror.HasCode(err, apperror.CodeFeedStale) {
		t.Fatalf("expected FEED_STALE, got %v", err)
	}
}

func TestProvider_IgnoresUnmatchedMessages(t *testing.T) {
	p := newProvider(t, "ws://127.0.0.1:1")
	p.handleMessage(context.Background(), []byte(`not json`))
	p.handleMessage(context.Background(), []byte(`{"result":null,"id":1}`))

	if _, err := p.Read(context.Background()); err == nil {
		t.Error("expected no data after unmatched messages")
	}
}
