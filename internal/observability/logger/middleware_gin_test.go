package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got == "" {
		t.Fatalf("expected X-Request-Id header to be set")
	}
}

func TestGinMiddlewareKeepsIncomingRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen != "abc-123" {
		t.Fatalf("expected request id propagated to context, got %q", seen)
	}
}

func TestWithContextAddsRunID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRunID(context.Background(), "01HRUN")
	WithContext(ctx, base).Info("payout.run")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["run_id"]; got != "01HRUN" {
		t.Fatalf("expected run_id field, got %v", got)
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT * FROM club_payouts", want: "SELECT"},
		{sql: "  update club_payouts SET status = 'processing'", want: "UPDATE"},
		{sql: "WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x", want: "INSERT"},
		{sql: "", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}
