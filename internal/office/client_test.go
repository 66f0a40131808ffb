package office

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"status":  "running",
			"version": "1.4.0",
			"apps":    map[string]bool{"word": true, "excel": false},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	health, err := c.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Success || health.Status != "running" {
		t.Errorf("unexpected health %+v", health)
	}
	if !health.Apps["word"] || health.Apps["excel"] {
		t.Errorf("unexpected apps %v", health.Apps)
	}
}

func TestCheckHealthServerDown(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	if _, err := c.CheckHealth(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestPostSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		if payload["text"] != "Quarterly report" {
			t.Errorf("unexpected payload %v", payload)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"message": "Text written",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	result, err := c.Post(context.Background(), "/word/write", map[string]interface{}{
		"text": "Quarterly report",
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !result.Success || result.Message != "Text written" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestPostFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "Word is not running",
			"details": "RPC server unavailable",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	result, err := c.Post(context.Background(), "/word/save", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if result.Success {
		t.Error("expected success=false")
	}
	if result.Error != "Word is not running" || result.Details != "RPC server unavailable" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestGetCarriesRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("workbook"); got != "Budget" {
			t.Errorf("unexpected workbook query %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"sheets":  []string{"Summary", "Data"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	result, err := c.Get(context.Background(), "/excel/get_sheets", url.Values{"workbook": {"Budget"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var data struct {
		Sheets []string `json:"sheets"`
	}
	if err := json.Unmarshal(result.Raw, &data); err != nil {
		t.Fatalf("parsing raw body: %v", err)
	}
	if len(data.Sheets) != 2 || data.Sheets[0] != "Summary" {
		t.Errorf("unexpected sheets %v", data.Sheets)
	}
}

func TestScreenshotDecodesImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/word/screenshot" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"message":  "Screenshot captured",
			"image":    base64.StdEncoding.EncodeToString(png),
			"format":   "png",
			"encoding": "base64",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	data, err := c.Screenshot(context.Background(), "word")
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if !bytes.Equal(data, png) {
		t.Errorf("decoded image mismatch: %v", data)
	}
}

func TestScreenshotFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "No active presentation",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if _, err := c.Screenshot(context.Background(), "powerpoint"); err == nil {
		t.Fatal("expected an error for a failure envelope")
	}
}

func TestPostNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	if _, err := c.Post(context.Background(), "/word/launch", nil); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
