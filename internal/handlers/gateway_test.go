package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGatewayTokenMiddlewareDisabledWhenEmpty(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := GatewayTokenMiddleware("  ")(next)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected passthrough without token, got %d", rr.Code)
	}
}

func TestGatewayTokenMiddlewareRejectsMissingToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})
	handler := GatewayTokenMiddleware("shared-token")(next)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestGatewayTokenMiddlewareRejectsWrongToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})
	handler := GatewayTokenMiddleware("shared-token")(next)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Gateway-Token", "other-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestGatewayTokenMiddlewareAcceptsMatchingToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := GatewayTokenMiddleware("shared-token")(next)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Gateway-Token", " shared-token ")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
}
