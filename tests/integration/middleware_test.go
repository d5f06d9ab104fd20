//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestRequestID_Generated(t *testing.T) {
	resp := do(t, http.MethodGet, "/livez", nil, "")
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID header not present")
	}
}

func TestRequestID_EchoedInErrors(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/meta", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("X-Request-ID", "custom-request-id-12345")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)

	if got := resp.Header.Get("X-Request-ID"); got != "custom-request-id-12345" {
		t.Errorf("X-Request-ID: got %q", got)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.RequestID != "custom-request-id-12345" {
		t.Errorf("request_id in body: got %q", body.RequestID)
	}
}

func TestCORS_Preflight(t *testing.T) {
	req, err := http.NewRequest(http.MethodOptions, baseURL+"/api/v1/quote", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://counter.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key, Content-Type")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNoContent)

	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}
	if resp.Header.Get("Access-Control-Allow-Headers") == "" {
		t.Error("Access-Control-Allow-Headers header not present")
	}
}

func TestRateLimit_Headers(t *testing.T) {
	resp := doGet(t, "/api/v1/meta")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	if resp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("X-RateLimit-Limit header not present")
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining header not present")
	}
}

func TestUnknownRoute(t *testing.T) {
	resp := doGet(t, "/api/v1/nope")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)

	if body := decodeJSON[errorResponse](t, resp); body.Error != "not_found" {
		t.Errorf("error code: got %q", body.Error)
	}
}
