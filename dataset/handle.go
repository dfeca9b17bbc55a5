package dataset

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternau/fluxdata/catalog"
	"github.com/ternau/fluxdata/internal/httputil"
	"github.com/ternau/fluxdata/internal/metrics"
)

// Accessor downloads dataset payloads over the THREDDS fileServer endpoint
// and decodes them. Downloads land in a local cache directory keyed by the
// dataset reference; published payloads are immutable, so a cached file is
// reused as-is.
type Accessor struct {
	http     *http.Client
	cacheDir string
}

// AccessorOption configures an Accessor.
type AccessorOption func(*Accessor)

// WithCacheDir overrides the download cache directory.
func WithCacheDir(dir string) AccessorOption {
	return func(a *Accessor) { a.cacheDir = dir }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) AccessorOption {
	return func(a *Accessor) { a.http = hc }
}

func NewAccessor(opts ...AccessorOption) *Accessor {
	a := &Accessor{
		http:     httputil.NewClient(),
		cacheDir: filepath.Join(os.TempDir(), "fluxdata"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open returns a lazy handle on the referenced dataset. No network or
// decode work happens until the handle is materialised.
func (a *Accessor) Open(ref catalog.DatasetRef) *Handle {
	return &Handle{ref: ref, accessor: a}
}

// Load materialises the referenced dataset immediately.
func (a *Accessor) Load(ref catalog.DatasetRef) (*Dataset, error) {
	return a.load(ref, false)
}

// LoadMissingAsNaN is Load with the -9999 fill value decoded to NaN.
func (a *Accessor) LoadMissingAsNaN(ref catalog.DatasetRef) (*Dataset, error) {
	return a.load(ref, true)
}

func (a *Accessor) load(ref catalog.DatasetRef, missingAsNaN bool) (*Dataset, error) {
	started := time.Now()
	path, err := a.download(ref)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues(ref.Site, ref.Level, "error").Inc()
		return nil, err
	}
	ds, err := DecodeFile(path, missingAsNaN)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues(ref.Site, ref.Level, "decode_error").Inc()
		return nil, &catalog.RemoteAccessError{URL: ref.URL, Err: err}
	}
	metrics.DatasetLoads.WithLabelValues(ref.Site, ref.Level, "ok").Inc()
	metrics.DatasetLoadLatency.WithLabelValues(ref.Site, ref.Level).Observe(time.Since(started).Seconds())
	return ds, nil
}

// download fetches the payload to the cache directory, returning the local
// path. Network and server failures surface as RemoteAccessError and are
// never retried here.
func (a *Accessor) download(ref catalog.DatasetRef) (string, error) {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	local := filepath.Join(a.cacheDir,
		fmt.Sprintf("%s_%s_%s_%s", ref.Site, ref.Version, ref.Level, ref.Name))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	resp, err := a.http.Get(ref.URL)
	if err != nil {
		return "", &catalog.RemoteAccessError{URL: ref.URL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &catalog.RemoteAccessError{
			URL: ref.URL,
			Err: fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	tmp, err := os.CreateTemp(a.cacheDir, ref.Name+".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", &catalog.RemoteAccessError{URL: ref.URL, Err: fmt.Errorf("download: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("move into cache: %w", err)
	}
	return local, nil
}

// Handle is a deferred-evaluation reference to a remote dataset: the
// payload is not fetched or materialised until Dataset is first called.
// Safe for concurrent use.
type Handle struct {
	ref      catalog.DatasetRef
	accessor *Accessor

	once sync.Once
	ds   *Dataset
	err  error
}

// Ref returns the dataset reference this handle resolves.
func (h *Handle) Ref() catalog.DatasetRef { return h.ref }

// Dataset materialises the dataset, downloading and decoding on first
// call. Subsequent calls return the same result.
func (h *Handle) Dataset() (*Dataset, error) {
	h.once.Do(func() {
		h.ds, h.err = h.accessor.Load(h.ref)
	})
	return h.ds, h.err
}
