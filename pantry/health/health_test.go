package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, h http.Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return rec.Code, resp
}

func TestHandler_Liveness(t *testing.T) {
	code, resp := serve(t, Handler(nil, nil))
	if code != http.StatusOK || resp.Status != "ok" || resp.Checks != nil {
		t.Errorf("code=%d resp=%+v", code, resp)
	}
}

func TestHandler_Checks(t *testing.T) {
	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("dial tcp: refused") }

	code, resp := serve(t, Handler(map[string]Check{"redis": ok, "geoip": nil}, nil))
	if code != http.StatusOK || resp.Status != "ok" || resp.Checks["redis"] != "ok" || resp.Checks["geoip"] != "ok" {
		t.Errorf("healthy: code=%d resp=%+v", code, resp)
	}

	code, resp = serve(t, Handler(map[string]Check{"redis": bad, "geoip": ok}, nil))
	if code != http.StatusServiceUnavailable || resp.Status != "error" {
		t.Errorf("unhealthy: code=%d resp=%+v", code, resp)
	}
	if resp.Checks["redis"] != "error" {
		t.Errorf("redis = %q, want error without detail", resp.Checks["redis"])
	}
}
