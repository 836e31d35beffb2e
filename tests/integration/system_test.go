//go:build integration

package integration_test

import (
	"encoding/json"
	"net/http"
	"testing"
)

func systemPaused(t *testing.T) bool {
	t.Helper()
	resp, err := http.Get(testServer.URL + "/api/v1/system/status")
	if err != nil {
		t.Fatalf("GET system status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return body.Paused
}

func TestPauseSkipsHeartbeats(t *testing.T) {
	decodeInto(t, postJSON(t, "/api/v1/system/pause", nil), http.StatusOK, nil)
	defer func() {
		decodeInto(t, postJSON(t, "/api/v1/system/resume", nil), http.StatusOK, nil)
	}()

	if !systemPaused(t) {
		t.Fatal("expected system paused")
	}

	var cycle struct {
		Status       string `json:"status"`
		TasksClaimed int    `json:"tasks_claimed"`
	}
	decodeInto(t, postJSON(t, "/api/v1/agents/by-name/Fathom/heartbeat", nil),
		http.StatusOK, &cycle)
	if cycle.Status != "paused" {
		t.Fatalf("expected paused cycle, got %q", cycle.Status)
	}
	if cycle.TasksClaimed != 0 {
		t.Fatalf("paused cycle must not claim, got %d", cycle.TasksClaimed)
	}
}

func TestResumeRestoresStatus(t *testing.T) {
	decodeInto(t, postJSON(t, "/api/v1/system/pause", nil), http.StatusOK, nil)
	decodeInto(t, postJSON(t, "/api/v1/system/resume", nil), http.StatusOK, nil)
	if systemPaused(t) {
		t.Fatal("expected system running after resume")
	}
}
