package httpfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/oracle-resolver/business/feed/domain"
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

const coindeskBody = `{"time":{"updated":"Jan 1, 2026"},"bpi":{"USD":{"code":"USD","rate":"101,250.5000","rate_float":101250.5}}}`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_Read(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		extract  string
		policy   domain.ConfidencePolicy
		wantNum  float64
		wantBool *bool
		wantConf int
	}{
		{
			name:     "coindesk above step",
			body:     coindeskBody,
			extract:  "body.bpi.USD.rate_float",
			policy:   domain.ConfidencePolicy{Base: 85, High: 95, Above: 50000},
			wantNum:  101250.5,
			wantConf: 95,
		},
		{
			name:     "coingecko flat",
			body:     `{"ethereum":{"usd":3125.42}}`,
			extract:  "body.ethereum.usd",
			policy:   domain.ConfidencePolicy{Base: 92},
			wantNum:  3125.42,
			wantConf: 92,
		},
		{
			name:     "integer literal in json",
			body:     `{"price":42000}`,
			extract:  "body.price",
			policy:   domain.ConfidencePolicy{Base: 85, High: 95, Above: 50000},
			wantNum:  42000,
			wantConf: 85,
		},
		{
			name:     "boolean condition",
			body:     `{"current":{"precipitation_mm":1.2}}`,
			extract:  "body.current.precipitation_mm > 0.0",
			policy:   domain.ConfidencePolicy{Base: 80},
			wantBool: ptr(true),
			wantConf: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, tt.body)
			p, err := NewProvider(Config{Name: "test", URL: srv.URL, Extract: tt.extract, Confidence: tt.policy}, nil, &mockLogger{})
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}

			r, err := p.Read(context.Background())
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if tt.wantBool != nil {
				if v, ok := r.Value.Bool(); !ok || v != *tt.wantBool {
					t.Errorf("value = %s, want %v", r.Value, *tt.wantBool)
				}
			} else if v, ok := r.Value.Number(); !ok || v != tt.wantNum {
				t.Errorf("value = %s, want %v", r.Value, tt.wantNum)
			}
			if r.Confidence != tt.wantConf {
				t.Errorf("confidence = %d, want %d", r.Confidence, tt.wantConf)
			}
		})
	}
}

func TestProvider_ReadFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"down"}`},
		{name: "rate limited upstream", status: http.StatusTooManyRequests, body: ``},
		{name: "not json", status: http.StatusOK, body: `<html>maintenance</html>`},
		{name: "missing path", status: http.StatusOK, body: `{"bpi":{}}`},
		{name: "string value", status: http.StatusOK, body: `{"bpi":{"USD":{"rate_float":"n/a"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			p, err := NewProvider(Config{Name: "bitcoin", URL: srv.URL, Extract: "body.bpi.USD.rate_float"}, nil, &mockLogger{})
			if err != nil {
				t.Fatalf("NewProvider: %v", err)
			}
			if _, err := p.Read(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestProvider_TransportFailure(t *testing.T) {
	p, err := NewProvider(Config{Name: "bitcoin", URL: "http://127.0.0.1:1", Extract: "body.x"}, nil, &mockLogger{})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if _, err := p.Read(context.Background()); err == nil {
		t.Error("expected transport error")
	}
}

func ptr[T any](v T) *T { return &v }
