package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
)

func createSession(t *testing.T, app *testApp, hostID string, settings map[string]any) string {
	t.Helper()
	resp := doRequest(t, app, hostID, http.MethodPost, "/api/sessions", settings)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["session_id"].(string)
}

func joinSession(t *testing.T, app *testApp, sessionID, playerID string) {
	t.Helper()
	resp := doRequest(t, app, playerID, http.MethodPost, "/api/sessions/"+sessionID+"/join", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join %s: expected status %d, got %d", playerID, http.StatusOK, resp.StatusCode)
	}
}

func startSession(t *testing.T, app *testApp, sessionID, hostID string) {
	t.Helper()
	resp := doRequest(t, app, hostID, http.MethodPost, "/api/sessions/"+sessionID+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func fetchView(t *testing.T, app *testApp, sessionID, playerID string) map[string]any {
	t.Helper()
	resp := doRequest(t, app, playerID, http.MethodGet, "/api/sessions/"+sessionID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func roundPath(sessionID string, round int, suffix string) string {
	return "/api/sessions/" + sessionID + "/rounds/" + strconv.Itoa(round) + suffix
}

func finishEntry(t *testing.T, app *testApp, sessionID, playerID string, round int) {
	t.Helper()
	resp := doRequest(t, app, playerID, http.MethodPut, roundPath(sessionID, round, "/entry"), map[string]any{
		"content": map[string]any{"template": "drake", "texts": []string{"top " + playerID, "bottom"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit %s: expected status %d, got %d", playerID, http.StatusOK, resp.StatusCode)
	}
	resp = doRequest(t, app, playerID, http.MethodPost, roundPath(sessionID, round, "/entry/finalize"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize %s: expected status %d, got %d", playerID, http.StatusOK, resp.StatusCode)
	}
}

func activeEntry(t *testing.T, view map[string]any) (string, string) {
	t.Helper()
	active, ok := view["active_submission"].(map[string]any)
	if !ok {
		t.Fatalf("expected active submission, got %#v", view["active_submission"])
	}
	return active["id"].(string), active["player_id"].(string)
}

// doRequest sends a JSON request as playerID. An empty playerID sends no
// identity at all.
func doRequest(t *testing.T, app *testApp, playerID, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, app.ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if playerID != "" {
		req.Header.Set(playerHeader, playerID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
