package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gertjana/fietsrouteapp/internal/core/domain"
)

var testCoverage = domain.BoundingBox{South: 50.7, West: 3.2, North: 53.7, East: 7.3}

func TestFetch_MapsElements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if q := r.FormValue("data"); q == "" {
			t.Error("missing overpass query in form body")
		}
		w.Write([]byte(`{"elements":[
			{"type":"node","id":4451001,"lat":52.1,"lon":5.2,"tags":{"rcn_ref":"23","network":"rcn","name":"Knooppunt 23"}},
			{"type":"node","id":4451002,"lat":52.2,"lon":5.3,"tags":{"note":"no ref here"}},
			{"type":"way","id":99,"tags":{"rcn_ref":"7"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCoverage)
	nodes, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(nodes) != 1 {
		t.Fatalf("expected 1 node (untagged and non-node elements skipped), got %d", len(nodes))
	}
	n := nodes[0]
	if n.ID != "23" || n.ExternalID != "4451001" {
		t.Errorf("wrong ids: %+v", n)
	}
	if n.Lat != 52.1 || n.Lng != 5.2 || n.Network != "rcn" {
		t.Errorf("wrong payload: %+v", n)
	}
}

func TestFetch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", 429)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCoverage)
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
