package camera

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:5000/"})
	if client.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %v", client.httpClient.Timeout)
	}

	client = NewClient(Config{BaseURL: "http://localhost:5000", Timeout: 5 * time.Second})
	if client.httpClient.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.httpClient.Timeout)
	}
}

func TestClient_StartStop(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(Result{Success: r.URL.Path == "/api/camera/start", Message: "ok"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	result, err := client.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !result.Success || result.Message != "ok" {
		t.Errorf("unexpected start result %+v", result)
	}

	result, err = client.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.Success {
		t.Error("expected application-level failure to be reported through Success")
	}

	if len(paths) != 2 || paths[0] != "/api/camera/start" || paths[1] != "/api/camera/stop" {
		t.Errorf("unexpected paths %v", paths)
	}
}

func TestClient_StartNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, Timeout: time.Second})
	if _, err := client.Start(context.Background()); err == nil {
		t.Error("expected network error")
	}
}

func TestClient_NonJSONErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Stop(context.Background())
	if err == nil || err.Error() != "camera api returned status 500" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestClient_Info(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/camera/info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"data":{"available":true,"width":640,"height":480,"fps":30.0,"camera_index":0}}`))
	}))
	defer server.Close()

	info, err := NewClient(Config{BaseURL: server.URL}).Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if !info.Available || info.Width != 640 || info.Height != 480 || info.FPS != 30 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestClient_InfoRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"no camera"}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Info(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}

func TestClient_DetectionSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/detection/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"summary":"1 person","object_count":1,"objects":[{"class":"person","confidence":0.876,"bbox":[1,2,3,4]}]}`))
	}))
	defer server.Close()

	summary, err := NewClient(Config{BaseURL: server.URL}).DetectionSummary(context.Background())
	if err != nil {
		t.Fatalf("DetectionSummary failed: %v", err)
	}
	if summary.Summary != "1 person" || summary.Detection.ObjectCount != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if len(summary.Detection.Objects) != 1 || summary.Detection.Objects[0].Label() != "87.6%" {
		t.Errorf("unexpected objects %+v", summary.Detection.Objects)
	}
}

func TestClient_DetectionSummaryRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"detector offline"}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).DetectionSummary(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}
