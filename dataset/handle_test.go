package dataset

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/ternau/fluxdata/catalog"
)

func TestAccessorDownloadCaches(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "payload-bytes")
	}))
	defer srv.Close()

	a := NewAccessor(WithCacheDir(t.TempDir()))
	ref := catalog.DatasetRef{
		Site: "AdelaideRiver", Version: "2024_v2", Level: "L3",
		Kind: catalog.KindDefault, Name: "AdelaideRiver_L3.nc",
		URL: srv.URL + "/AdelaideRiver_L3.nc",
	}

	local, err := a.download(ref)
	if err != nil {
		t.Fatalf("download() error: %v", err)
	}
	body, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(body) != "payload-bytes" {
		t.Errorf("cached payload = %q", body)
	}

	// Published payloads are immutable: the second download reuses the
	// cache file without touching the server.
	again, err := a.download(ref)
	if err != nil {
		t.Fatalf("second download() error: %v", err)
	}
	if again != local {
		t.Errorf("second download path = %q, want %q", again, local)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestAccessorDownloadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := NewAccessor(WithCacheDir(t.TempDir()))
	_, err := a.download(catalog.DatasetRef{Name: "x.nc", URL: srv.URL + "/x.nc"})
	var ra *catalog.RemoteAccessError
	if !errors.As(err, &ra) {
		t.Fatalf("download() error = %v, want *catalog.RemoteAccessError", err)
	}
}

func TestOpenIsLazy(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	a := NewAccessor(WithCacheDir(t.TempDir()))
	h := a.Open(catalog.DatasetRef{Site: "Warra", Name: "Warra_L3.nc", URL: srv.URL + "/Warra_L3.nc"})

	if got := h.Ref().Site; got != "Warra" {
		t.Errorf("Ref().Site = %q, want Warra", got)
	}
	if hits.Load() != 0 {
		t.Errorf("Open() touched the network: %d requests", hits.Load())
	}
}
