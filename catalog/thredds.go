package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ternau/fluxdata/internal/httputil"
	"github.com/ternau/fluxdata/internal/metrics"
)

// DefaultBaseURL is the TERN OzFlux THREDDS catalog root.
const DefaultBaseURL = "https://dap.tern.org.au/thredds/catalog/ecosystem_process/ozflux/"

// catalogItem is a single entry of a THREDDS catalog page: either a
// catalogRef (a child catalog) or a dataset file.
type catalogItem struct {
	Name string
	URL  string // child catalog URL, or fileServer access URL for datasets
}

type threddsCatalog struct {
	XMLName  xml.Name         `xml:"catalog"`
	Datasets []threddsDataset `xml:"dataset"`
	Refs     []threddsRef     `xml:"catalogRef"`
}

type threddsDataset struct {
	Name     string           `xml:"name,attr"`
	URLPath  string           `xml:"urlPath,attr"`
	Datasets []threddsDataset `xml:"dataset"`
	Refs     []threddsRef     `xml:"catalogRef"`
}

type threddsRef struct {
	Name  string `xml:"name,attr"`
	Title string `xml:"http://www.w3.org/1999/xlink title,attr"`
	Href  string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

// Client fetches and caches THREDDS catalog pages. The cache lives for the
// process lifetime and is only invalidated by an explicit Refresh; it is
// safe for concurrent readers once populated.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	cache map[string][]catalogItem
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different catalog root, e.g. a test
// server.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(url, "/") {
			url += "/"
		}
		c.baseURL = url
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    httputil.NewClient(),
		cache:   make(map[string][]catalogItem),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh drops all cached catalog pages. Subsequent calls re-fetch from
// the server.
func (c *Client) Refresh() {
	c.mu.Lock()
	c.cache = make(map[string][]catalogItem)
	c.mu.Unlock()
}

// catalogURL builds the catalog.xml URL for the given path segments under
// the catalog root.
func (c *Client) catalogURL(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteString(s)
		b.WriteString("/")
	}
	b.WriteString("catalog.xml")
	return b.String()
}

// items returns the entries of a catalog page, fetching on cache miss.
// catalogRef entries resolve to child catalog URLs; dataset entries (.nc)
// resolve to fileServer access URLs.
func (c *Client) items(url string) ([]catalogItem, error) {
	c.mu.RLock()
	cached, ok := c.cache[url]
	c.mu.RUnlock()
	if ok {
		metrics.CatalogFetches.WithLabelValues("cached").Inc()
		return cached, nil
	}

	body, err := c.fetch(url)
	if err != nil {
		return nil, err
	}

	var doc threddsCatalog
	if err := xml.Unmarshal(body, &doc); err != nil {
		metrics.CatalogFetches.WithLabelValues("parse_error").Inc()
		return nil, &RemoteAccessError{URL: url, Err: fmt.Errorf("unmarshal catalog: %w", err)}
	}

	var entries []catalogItem
	collectRefs(url, doc.Refs, &entries)
	for _, ds := range doc.Datasets {
		collectDatasets(url, ds, &entries)
	}

	c.mu.Lock()
	c.cache[url] = entries
	c.mu.Unlock()
	metrics.CatalogFetches.WithLabelValues("ok").Inc()
	return entries, nil
}

func collectRefs(pageURL string, refs []threddsRef, out *[]catalogItem) {
	for _, ref := range refs {
		name := ref.Name
		if name == "" {
			name = ref.Title
		}
		*out = append(*out, catalogItem{
			Name: name,
			URL:  strings.Replace(pageURL, "catalog.xml", ref.Href, 1),
		})
	}
}

func collectDatasets(pageURL string, ds threddsDataset, out *[]catalogItem) {
	if strings.HasSuffix(ds.Name, ".nc") {
		access := strings.Replace(pageURL, "catalog.xml", ds.Name, 1)
		access = strings.Replace(access, "/catalog/", "/fileServer/", 1)
		*out = append(*out, catalogItem{Name: ds.Name, URL: access})
	}
	collectRefs(pageURL, ds.Refs, out)
	for _, child := range ds.Datasets {
		collectDatasets(pageURL, child, out)
	}
}

// fetch retrieves a catalog page. Transient server trouble (429, 5xx) is
// retried with exponential backoff; 404 maps to errNotFound so callers can
// attach the offending key.
func (c *Client) fetch(url string) ([]byte, error) {
	var body []byte
	operation := func() error {
		resp, err := c.http.Get(url)
		if err != nil {
			return backoff.Permanent(&RemoteAccessError{URL: url, Err: err})
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %s", errNotFound, url))
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&RemoteAccessError{
				URL: url,
				Err: fmt.Errorf("status %d", resp.StatusCode),
			})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(&RemoteAccessError{URL: url, Err: fmt.Errorf("read body: %w", err)})
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, bo); err != nil {
		metrics.CatalogFetches.WithLabelValues("error").Inc()
		var ra *RemoteAccessError
		if errors.As(err, &ra) || errors.Is(err, errNotFound) {
			return nil, err
		}
		return nil, &RemoteAccessError{URL: url, Err: err}
	}
	return body, nil
}
