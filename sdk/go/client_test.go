package mlmdqsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newStub(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL + "/")
	c.BearerToken = "tok"
	return c
}

func TestCountSendsFilter(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/events/count" {
			t.Errorf("path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("artifact") != "1,2" || q.Get("event_type") != "INPUT,OUTPUT" || q.Get("asc") != "true" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{"kind": "events", "count": 3})
	})

	n, err := c.Count(context.Background(), "events", Filter{Artifacts: []int64{1, 2}, EventTypes: []string{"INPUT", "OUTPUT"}, Asc: true})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d", n)
	}
}

func TestArtifacts(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "Dataset,Model" {
			t.Errorf("type %q", got)
		}
		w.Write([]byte(`[{"id":7,"type_id":1,"type":"Dataset","uri":"s3://x","state":"LIVE","create_time":"2024-01-01T00:00:00Z","update_time":"2024-01-01T00:00:00Z","properties":{"rows":10}}]`))
	})

	arts, err := c.Artifacts(context.Background(), Filter{Types: []string{"Dataset", "Model"}})
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(arts) != 1 || arts[0].ID != 7 || arts[0].State != "LIVE" || arts[0].Properties["rows"] != float64(10) {
		t.Fatalf("unexpected artifacts %+v", arts)
	}
}

func TestGraphOptions(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/graph/lineage/5" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.URL.Query().Get("depth") != "0" || r.URL.Query().Get("direction") != "both" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		w.Write([]byte("digraph \"lineage\" {\n}\n"))
	})

	depth := 0
	out, err := c.LineageGraph(context.Background(), 5, GraphOptions{Depth: &depth, Direction: "both"})
	if err != nil {
		t.Fatalf("lineage: %v", err)
	}
	if out != "digraph \"lineage\" {\n}\n" {
		t.Fatalf("unexpected graph %q", out)
	}
}

func TestAPIError(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"not_found","message":"execution 99999 not found"}}`))
	})

	_, err := c.IOGraph(context.Background(), 99999, GraphOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.NotFound() || apiErr.Code != "not_found" || apiErr.Message != "execution 99999 not found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}
