package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

const catalogHeader = `<?xml version="1.0" encoding="UTF-8"?>
<catalog xmlns="http://www.unidata.ucar.edu/namespaces/thredds/InvCatalog/v1.0"
         xmlns:xlink="http://www.w3.org/1999/xlink" name="OzFlux">`

// refPage renders a THREDDS catalog page whose entries are child catalogs.
func refPage(names ...string) string {
	var b strings.Builder
	b.WriteString(catalogHeader)
	for _, name := range names {
		fmt.Fprintf(&b, `<catalogRef xlink:href="%s/catalog.xml" xlink:title="%s" name=""/>`, name, name)
	}
	b.WriteString(`</catalog>`)
	return b.String()
}

// datasetPage renders a page whose entries are .nc dataset files, nested
// under a collection dataset element the way the server emits them.
func datasetPage(files ...string) string {
	var b strings.Builder
	b.WriteString(catalogHeader)
	b.WriteString(`<dataset name="default">`)
	for _, f := range files {
		fmt.Fprintf(&b, `<dataset name="%s" urlPath="ecosystem_process/ozflux/%s"/>`, f, f)
	}
	b.WriteString(`</dataset></catalog>`)
	return b.String()
}

// newTestServer serves a small OzFlux-shaped catalog tree under
// /thredds/catalog/ozflux/ and counts requests.
func newTestServer(t *testing.T) (*Client, *httptest.Server, *atomic.Int64) {
	t.Helper()

	versions := []string{"2024_v1", "2020", "2022_v2", "2023_v2", "2021_v1", "2024_v2", "2022_v1", "2023_v1"}

	pages := map[string]string{
		"/thredds/catalog/ozflux/catalog.xml":                  refPage("AdelaideRiver", "CalperumChowilla", "Warra"),
		"/thredds/catalog/ozflux/AdelaideRiver/catalog.xml":    refPage(versions...),
		"/thredds/catalog/ozflux/Warra/catalog.xml":            refPage("2024_v1"),
		"/thredds/catalog/ozflux/CalperumChowilla/catalog.xml": refPage("2023_v1"),
	}
	for _, v := range versions {
		pages["/thredds/catalog/ozflux/AdelaideRiver/"+v+"/catalog.xml"] = refPage("L3", "L4", "L6")
		pages["/thredds/catalog/ozflux/AdelaideRiver/"+v+"/L3/catalog.xml"] = refPage("default")
		pages["/thredds/catalog/ozflux/AdelaideRiver/"+v+"/L3/default/catalog.xml"] = datasetPage("AdelaideRiver_L3.nc")
		pages["/thredds/catalog/ozflux/AdelaideRiver/"+v+"/L6/catalog.xml"] = refPage("default")
		pages["/thredds/catalog/ozflux/AdelaideRiver/"+v+"/L6/default/catalog.xml"] = datasetPage(
			"AdelaideRiver_L6.nc", "AdelaideRiver_L6_Daily.nc", "AdelaideRiver_L6_Monthly.nc",
			"AdelaideRiver_L6_Annual.nc", "AdelaideRiver_L6_Cumulative.nc", "AdelaideRiver_L6_Summary.nc")
	}

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)

	return New(WithBaseURL(srv.URL + "/thredds/catalog/ozflux/")), srv, &hits
}

func TestSites(t *testing.T) {
	c, _, _ := newTestServer(t)

	sites, err := c.Sites()
	if err != nil {
		t.Fatalf("Sites() error: %v", err)
	}
	want := []string{"AdelaideRiver", "CalperumChowilla", "Warra"}
	if !reflect.DeepEqual(sites, want) {
		t.Errorf("Sites() = %v, want %v", sites, want)
	}
}

func TestVersionsSorted(t *testing.T) {
	c, _, _ := newTestServer(t)

	versions, err := c.Versions("AdelaideRiver")
	if err != nil {
		t.Fatalf("Versions() error: %v", err)
	}
	want := []string{"2020", "2021_v1", "2022_v1", "2022_v2", "2023_v1", "2023_v2", "2024_v1", "2024_v2"}
	if !reflect.DeepEqual(versions, want) {
		t.Errorf("Versions() = %v, want %v", versions, want)
	}
}

func TestLatestVersion(t *testing.T) {
	c, _, _ := newTestServer(t)

	latest, err := c.LatestVersion("AdelaideRiver")
	if err != nil {
		t.Fatalf("LatestVersion() error: %v", err)
	}
	if latest != "2024_v2" {
		t.Errorf("LatestVersion() = %q, want %q", latest, "2024_v2")
	}
}

func TestVersionsUnknownSite(t *testing.T) {
	c, _, _ := newTestServer(t)

	_, err := c.Versions("Atlantis")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Versions() error = %v, want *NotFoundError", err)
	}
	if nf.Site != "Atlantis" {
		t.Errorf("NotFoundError.Site = %q, want %q", nf.Site, "Atlantis")
	}
}

func TestProcessingLevels(t *testing.T) {
	c, _, _ := newTestServer(t)

	levels, err := c.ProcessingLevels("AdelaideRiver", "2024_v2")
	if err != nil {
		t.Fatalf("ProcessingLevels() error: %v", err)
	}
	want := []string{"L3", "L4", "L6"}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("ProcessingLevels() = %v, want %v", levels, want)
	}
}

func TestResolve(t *testing.T) {
	c, srv, _ := newTestServer(t)

	ref, err := c.Resolve("AdelaideRiver", "2024_v2", "L3")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := DatasetRef{
		Site:    "AdelaideRiver",
		Version: "2024_v2",
		Level:   "L3",
		Kind:    KindDefault,
		Name:    "AdelaideRiver_L3.nc",
		URL:     srv.URL + "/thredds/fileServer/ozflux/AdelaideRiver/2024_v2/L3/default/AdelaideRiver_L3.nc",
	}
	if ref != want {
		t.Errorf("Resolve() = %+v, want %+v", ref, want)
	}

	// Resolution is deterministic for a catalog snapshot.
	again, err := c.Resolve("AdelaideRiver", "2024_v2", "L3")
	if err != nil {
		t.Fatalf("second Resolve() error: %v", err)
	}
	if again != ref {
		t.Errorf("second Resolve() = %+v, want %+v", again, ref)
	}
}

func TestResolveKind(t *testing.T) {
	c, _, _ := newTestServer(t)

	tests := []struct {
		kind     string
		wantName string
	}{
		{"30min", "AdelaideRiver_L6.nc"},
		{"daily", "AdelaideRiver_L6_Daily.nc"},
		{"monthly", "AdelaideRiver_L6_Monthly.nc"},
		{"annual", "AdelaideRiver_L6_Annual.nc"},
		{"cumulative", "AdelaideRiver_L6_Cumulative.nc"},
		{"summary", "AdelaideRiver_L6_Summary.nc"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			ref, err := c.ResolveKind("AdelaideRiver", "2024_v2", "L6", tt.kind)
			if err != nil {
				t.Fatalf("ResolveKind() error: %v", err)
			}
			if ref.Name != tt.wantName {
				t.Errorf("ResolveKind().Name = %q, want %q", ref.Name, tt.wantName)
			}
			if ref.Kind != tt.kind {
				t.Errorf("ResolveKind().Kind = %q, want %q", ref.Kind, tt.kind)
			}
		})
	}
}

func TestResolveInvalidSelection(t *testing.T) {
	c, _, _ := newTestServer(t)

	tests := []struct {
		name                 string
		site, version, level string
		kind                 string
	}{
		{"unpublished version", "AdelaideRiver", "2019", "L3", KindDefault},
		{"version of another site", "Warra", "2023_v1", "L3", KindDefault},
		{"kind not published for level", "AdelaideRiver", "2024_v2", "L3", "daily"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ResolveKind(tt.site, tt.version, tt.level, tt.kind)
			var inv *InvalidSelectionError
			if !errors.As(err, &inv) {
				t.Fatalf("ResolveKind() error = %v, want *InvalidSelectionError", err)
			}
			if inv.Site != tt.site || inv.Version != tt.version {
				t.Errorf("InvalidSelectionError = %+v, want site %q version %q", inv, tt.site, tt.version)
			}
		})
	}
}

func TestResolveUnknownSite(t *testing.T) {
	c, _, _ := newTestServer(t)

	_, err := c.Resolve("Atlantis", "2024_v2", "L3")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve() error = %v, want *NotFoundError", err)
	}
}

func TestCatalogCache(t *testing.T) {
	c, _, hits := newTestServer(t)

	if _, err := c.Sites(); err != nil {
		t.Fatalf("Sites() error: %v", err)
	}
	after := hits.Load()
	if after != 1 {
		t.Fatalf("requests after first Sites() = %d, want 1", after)
	}

	if _, err := c.Sites(); err != nil {
		t.Fatalf("second Sites() error: %v", err)
	}
	if hits.Load() != after {
		t.Errorf("second Sites() hit the server: %d requests", hits.Load())
	}

	c.Refresh()
	if _, err := c.Sites(); err != nil {
		t.Fatalf("Sites() after Refresh error: %v", err)
	}
	if hits.Load() != after+1 {
		t.Errorf("requests after Refresh = %d, want %d", hits.Load(), after+1)
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, refPage("AdelaideRiver"))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/thredds/catalog/ozflux/"))
	sites, err := c.Sites()
	if err != nil {
		t.Fatalf("Sites() error: %v", err)
	}
	if len(sites) != 1 || sites[0] != "AdelaideRiver" {
		t.Errorf("Sites() = %v, want [AdelaideRiver]", sites)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3", calls.Load())
	}
}

func TestFetchMalformedCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<catalog><unterminated")
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL + "/thredds/catalog/ozflux/"))
	_, err := c.Sites()
	var ra *RemoteAccessError
	if !errors.As(err, &ra) {
		t.Fatalf("Sites() error = %v, want *RemoteAccessError", err)
	}
}

func TestDatasetKind(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"AdelaideRiver_L3.nc", "30min"},
		{"AdelaideRiver_L6.nc", "30min"},
		{"Warra_L6_Daily.nc", "daily"},
		{"Warra_L6_Monthly.nc", "monthly"},
		{"Warra_L6_Annual.nc", "annual"},
		{"Warra_L6_Cumulative.nc", "cumulative"},
		{"Warra_L6_Summary.nc", "summary"},
		// Too few segments to carry a kind suffix.
		{"Daily.nc", "30min"},
		{"Warra_Daily.nc", "30min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := datasetKind(tt.name); got != tt.want {
				t.Errorf("datasetKind(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
