//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal %s body: %v", path, err)
	}
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, want int, dst any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %d", want, resp.StatusCode)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func agentByName(t *testing.T, name string) (id string) {
	t.Helper()
	resp, err := http.Get(testServer.URL + "/api/v1/agents/by-name/" + name)
	if err != nil {
		t.Fatalf("GET agent %s: %v", name, err)
	}
	var a struct {
		ID string `json:"id"`
	}
	decodeInto(t, resp, http.StatusOK, &a)
	return a.ID
}

type taskResponse struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	AssigneeIDs []string `json:"assignee_ids"`
}

// TestTaskLifecycle drives a task from the operator inbox through claim,
// start and completion over the HTTP API, against the bootstrapped roster.
func TestTaskLifecycle(t *testing.T) {
	vanta := agentByName(t, "Vanta")

	var created taskResponse
	decodeInto(t, postJSON(t, "/api/v1/tasks", map[string]any{
		"title":           "Audit webhook signature validation",
		"description":     "Verify inbound run events are authenticated.",
		"priority":        "high",
		"required_skills": []string{"security"},
	}), http.StatusCreated, &created)
	if created.Status != "inbox" {
		t.Fatalf("expected inbox, got %q", created.Status)
	}

	var claimed taskResponse
	decodeInto(t, postJSON(t, "/api/v1/tasks/"+created.ID+"/claim",
		map[string]string{"agent_id": vanta}), http.StatusOK, &claimed)
	if claimed.Status != "assigned" {
		t.Fatalf("expected assigned, got %q", claimed.Status)
	}
	if len(claimed.AssigneeIDs) != 1 || claimed.AssigneeIDs[0] != vanta {
		t.Fatalf("unexpected assignees: %v", claimed.AssigneeIDs)
	}

	// A second claim must lose: the task already left the inbox.
	resp := postJSON(t, "/api/v1/tasks/"+created.ID+"/claim",
		map[string]string{"agent_id": vanta})
	decodeInto(t, resp, http.StatusConflict, nil)

	var started taskResponse
	decodeInto(t, postJSON(t, "/api/v1/tasks/"+created.ID+"/start",
		map[string]string{"agent_id": vanta}), http.StatusOK, &started)
	if started.Status != "in_progress" {
		t.Fatalf("expected in_progress, got %q", started.Status)
	}

	var completed taskResponse
	decodeInto(t, postJSON(t, "/api/v1/tasks/"+created.ID+"/complete", map[string]string{
		"agent_id":    vanta,
		"summary":     "Signatures verified, two findings filed.",
		"deliverable": "# Findings\n\nSee attached report.",
	}), http.StatusOK, &completed)
	if completed.Status != "review" {
		t.Fatalf("expected review, got %q", completed.Status)
	}

	// The deliverable must be attached to the task.
	getResp, err := http.Get(fmt.Sprintf("%s/api/v1/tasks/%s", testServer.URL, created.ID))
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	var details struct {
		Documents []struct {
			Type string `json:"type"`
		} `json:"documents"`
	}
	decodeInto(t, getResp, http.StatusOK, &details)
	if len(details.Documents) != 1 || details.Documents[0].Type != "deliverable" {
		t.Fatalf("expected one deliverable document, got %+v", details.Documents)
	}
}

func TestClaimWithoutSkillIsRejected(t *testing.T) {
	quill := agentByName(t, "Quill")

	var created taskResponse
	decodeInto(t, postJSON(t, "/api/v1/tasks", map[string]any{
		"title":           "Harden container images",
		"description":     "Review base image CVEs.",
		"required_skills": []string{"security"},
	}), http.StatusCreated, &created)

	resp := postJSON(t, "/api/v1/tasks/"+created.ID+"/claim",
		map[string]string{"agent_id": quill})
	decodeInto(t, resp, http.StatusUnprocessableEntity, nil)
}
