package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{Addr: "0.0.0.0:1"}, false},
		{"default loopback", Config{Enabled: true}, false},
		{"localhost", Config{Enabled: true, Addr: "localhost:9000"}, false},
		{"ipv6 loopback", Config{Enabled: true, Addr: "[::1]:9000"}, false},
		{"open", Config{Enabled: true, Addr: "0.0.0.0:9000"}, true},
		{"open with token", Config{Enabled: true, Addr: "0.0.0.0:9000", Token: "s"}, false},
		{"open insecure", Config{Enabled: true, Addr: ":9000", AllowInsecure: true}, false},
		{"bad addr", Config{Enabled: true, Addr: "nope"}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "m 1\n") })
	healthy := true
	s := New(logx.Nop(), metrics, func(context.Context) Health {
		return Health{OK: healthy, Components: map[string]any{"engine": "ok"}}
	})

	tests := []struct {
		name   string
		cfg    Config
		path   string
		auth   string
		status int
	}{
		{"health", Config{}, "/healthz", "", http.StatusOK},
		{"metrics", Config{}, "/metrics", "", http.StatusOK},
		{"pprof off", Config{}, "/debug/pprof/", "", http.StatusNotFound},
		{"pprof on", Config{Pprof: true}, "/debug/pprof/", "", http.StatusOK},
		{"no token", Config{Token: "s3"}, "/healthz", "", http.StatusUnauthorized},
		{"wrong token", Config{Token: "s3"}, "/healthz", "Bearer nope", http.StatusUnauthorized},
		{"token", Config{Token: "s3"}, "/metrics", "Bearer s3", http.StatusOK},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			s.Handler(tt.cfg).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("GET %s = %d, want %d", tt.path, rec.Code, tt.status)
			}
		})
	}
}

func TestHealthUnhealthy(t *testing.T) {
	t.Parallel()

	s := New(logx.Nop(), nil, func(context.Context) Health {
		return Health{OK: false, Components: map[string]any{"supervisor": "boom"}}
	})
	rec := httptest.NewRecorder()
	s.Handler(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var h Health
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode = %v", err)
	}
	if h.OK || h.Components["supervisor"] != "boom" {
		t.Fatalf("health = %+v", h)
	}
}

func TestApplyEnableDisable(t *testing.T) {
	t.Parallel()

	s := New(logx.Nop(), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	t.Cleanup(func() { s.Stop(context.Background()) })

	if err := s.Apply(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"}); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatalf("Addr() empty after enable")
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if err := s.Apply(ctx, Config{}); err != nil {
		t.Fatalf("Apply(disabled) = %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("Addr() = %q after disable, want empty", s.Addr())
	}
}
