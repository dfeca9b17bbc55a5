// Package fluxdata is a convenience access layer over the TERN OzFlux
// THREDDS data service: discover sites, versions and processing levels,
// fetch and subset flux-tower datasets, and export them to Excel workbooks
// or OneFlux CSV files.
package fluxdata

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ternau/fluxdata/catalog"
	"github.com/ternau/fluxdata/dataset"
	"github.com/ternau/fluxdata/export"
)

// DefaultLevel is the processing level used when the caller does not name
// one.
const DefaultLevel = "L3"

// Site is an instrumented observation station as described by the catalog
// and the global attributes of its latest fully processed (L6) dataset.
// MetadataErr records a failure loading that dataset; the site itself is
// still listed by name.
type Site struct {
	Name         string
	Longitude    float64
	Latitude     float64
	Vegetation   string
	CanopyHeight string
	Start        string // time_coverage_start
	End          string // time_coverage_end
	MetadataErr  error
}

// Result is the per-site outcome of a batch operation: exactly one of
// Dataset or Err is set.
type Result struct {
	Dataset *dataset.Dataset
	Err     error
}

// Results collects batch outcomes keyed by site. Order preserves the input
// site list, so ranging over it reports sites in request order.
type Results struct {
	Order  []string
	BySite map[string]Result
}

func (r *Results) add(site string, ds *dataset.Dataset, err error) {
	r.Order = append(r.Order, site)
	r.BySite[site] = Result{Dataset: ds, Err: err}
}

// Get returns the recorded outcome for a site.
func (r *Results) Get(site string) Result { return r.BySite[site] }

// Loader materialises dataset references. Implemented by
// dataset.Accessor; tests substitute doubles.
type Loader interface {
	Load(ref catalog.DatasetRef) (*dataset.Dataset, error)
	LoadMissingAsNaN(ref catalog.DatasetRef) (*dataset.Dataset, error)
}

// Client is the public face of the library. Zero-value construction via
// New talks to the production TERN service; both collaborators are
// injectable.
type Client struct {
	catalog *catalog.Client
	loader  Loader
}

// Option configures a Client.
type Option func(*Client)

// WithCatalog substitutes the catalog resolver.
func WithCatalog(c *catalog.Client) Option {
	return func(cl *Client) { cl.catalog = c }
}

// WithLoader substitutes the dataset loader.
func WithLoader(l Loader) Option {
	return func(cl *Client) { cl.loader = l }
}

func New(opts ...Option) *Client {
	cl := &Client{}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.catalog == nil {
		cl.catalog = catalog.New()
	}
	if cl.loader == nil {
		cl.loader = dataset.NewAccessor()
	}
	return cl
}

// Catalog exposes the underlying resolver, e.g. for an explicit Refresh.
func (c *Client) Catalog() *catalog.Client { return c.catalog }

// Sites lists every site with its location and temporal coverage, taken
// from the latest-version L6 dataset's global attributes. A site whose
// metadata dataset cannot be loaded is still listed by name.
func (c *Client) Sites() ([]Site, error) {
	names, err := c.catalog.Sites()
	if err != nil {
		return nil, err
	}
	sites := make([]Site, 0, len(names))
	for _, name := range names {
		site := Site{Name: name}
		if err := c.fillSiteMetadata(&site); err != nil {
			log.Printf("fluxdata: site %s metadata: %v", name, err)
			site.MetadataErr = err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func (c *Client) fillSiteMetadata(site *Site) error {
	version, err := c.catalog.LatestVersion(site.Name)
	if err != nil {
		return err
	}
	ref, err := c.catalog.Resolve(site.Name, version, "L6")
	if err != nil {
		return err
	}
	ds, err := c.loader.Load(ref)
	if err != nil {
		return err
	}
	site.Longitude, _ = strconv.ParseFloat(ds.Attrs["longitude"], 64)
	site.Latitude, _ = strconv.ParseFloat(ds.Attrs["latitude"], 64)
	site.Vegetation = ds.Attrs["vegetation"]
	site.CanopyHeight = ds.Attrs["canopy_height"]
	site.Start = ds.Attrs["time_coverage_start"]
	site.End = ds.Attrs["time_coverage_end"]
	return nil
}

// Versions lists the dataset versions for a site, oldest first.
func (c *Client) Versions(site string) ([]string, error) {
	return c.catalog.Versions(site)
}

// ProcessingLevels lists the quality tiers for a (site, version) pair.
func (c *Client) ProcessingLevels(site, version string) ([]string, error) {
	return c.catalog.ProcessingLevels(site, version)
}

// resolve applies the latest-version and default-level conventions before
// consulting the locator.
func (c *Client) resolve(site, version, level string) (catalog.DatasetRef, error) {
	if version == "" {
		latest, err := c.catalog.LatestVersion(site)
		if err != nil {
			return catalog.DatasetRef{}, err
		}
		version = latest
	}
	if level == "" {
		level = DefaultLevel
	}
	return c.catalog.Resolve(site, version, level)
}

// Dataset fetches the default 30-minute dataset for a triple. An empty
// version selects the latest release; an empty level selects L3.
func (c *Client) Dataset(site, version, level string) (*dataset.Dataset, error) {
	ref, err := c.resolve(site, version, level)
	if err != nil {
		return nil, err
	}
	return c.loader.Load(ref)
}

// DatasetMissingAsNaN is Dataset with the -9999 fill value decoded to NaN.
func (c *Client) DatasetMissingAsNaN(site, version, level string) (*dataset.Dataset, error) {
	ref, err := c.resolve(site, version, level)
	if err != nil {
		return nil, err
	}
	return c.loader.LoadMissingAsNaN(ref)
}

// L6Dataset fetches one of the server-side aggregated L6 products:
// "30min", "daily", "monthly", "annual", "cumulative" or "summary".
func (c *Client) L6Dataset(site, version, kind string) (*dataset.Dataset, error) {
	if version == "" {
		latest, err := c.catalog.LatestVersion(site)
		if err != nil {
			return nil, err
		}
		version = latest
	}
	ref, err := c.catalog.ResolveKind(site, version, "L6", kind)
	if err != nil {
		return nil, err
	}
	return c.loader.Load(ref)
}

// Datasets fetches the same (version, level) dataset for several sites.
// Each site succeeds or fails independently; outcomes are recorded per key
// in input order.
func (c *Client) Datasets(sites []string, version, level string) *Results {
	out := &Results{BySite: make(map[string]Result, len(sites))}
	for _, site := range sites {
		ds, err := c.Dataset(site, version, level)
		out.add(site, ds, err)
	}
	return out
}

// Subset fetches a dataset restricted to the given variables and time
// range. Nil variables passes everything through; empty time strings leave
// that bound open. Times accept "2006-01-02", "2006-01-02 15:04" and ISO
// forms, both bounds inclusive.
func (c *Client) Subset(site, version, level string, variables []string, startTime, endTime string) (*dataset.Dataset, error) {
	start, err := parseTimeArg(startTime)
	if err != nil {
		return nil, err
	}
	end, err := parseTimeArg(endTime)
	if err != nil {
		return nil, err
	}

	ds, err := c.Dataset(site, version, level)
	if err != nil {
		return nil, err
	}
	return ds.Subset(dataset.SubsetOptions{
		Variables: variables,
		Start:     start,
		End:       end,
	})
}

// Subsets applies the same subset parameters independently per site, with
// the same isolation and ordering semantics as Datasets.
func (c *Client) Subsets(sites []string, version, level string, variables []string, startTime, endTime string) *Results {
	out := &Results{BySite: make(map[string]Result, len(sites))}
	for _, site := range sites {
		ds, err := c.Subset(site, version, level, variables, startTime, endTime)
		out.add(site, ds, err)
	}
	return out
}

// Variables lists every variable name of a site's latest default dataset,
// coordinates included.
func (c *Client) Variables(site string) ([]string, error) {
	ds, err := c.Dataset(site, "", "")
	if err != nil {
		return nil, err
	}
	return ds.Variables(), nil
}

// Attributes returns the attribute mapping of the requested variables of
// a site's latest default dataset, or of every variable when variables is
// nil.
func (c *Client) Attributes(site string, variables []string) (map[string]map[string]string, error) {
	ds, err := c.Dataset(site, "", "")
	if err != nil {
		return nil, err
	}
	return ds.Attributes(variables)
}

// GlobalAttributes returns the global attributes of a site's latest
// default dataset.
func (c *Client) GlobalAttributes(site string) (map[string]string, error) {
	ds, err := c.Dataset(site, "", "")
	if err != nil {
		return nil, err
	}
	return ds.Attrs, nil
}

// Coordinates lists the coordinate variable names of a triple's dataset.
func (c *Client) Coordinates(site, version, level string) ([]string, error) {
	ds, err := c.Dataset(site, version, level)
	if err != nil {
		return nil, err
	}
	return ds.Coordinates(), nil
}

// TemporalRange returns the first and last timestamps of a triple's
// dataset.
func (c *Client) TemporalRange(site, version, level string) (time.Time, time.Time, error) {
	ds, err := c.Dataset(site, version, level)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end, ok := ds.TemporalRange()
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("fluxdata: dataset for site %q has empty time dimension", site)
	}
	return start, end, nil
}

// ExportExcel writes the triple's dataset as a three-sheet workbook. The
// level defaults to L6 when empty.
func (c *Client) ExportExcel(path, site, version, level string) (string, error) {
	if level == "" {
		level = "L6"
	}
	ds, err := c.Dataset(site, version, level)
	if err != nil {
		return "", err
	}
	return export.Excel(path, ds)
}

// ExportOneFluxCSV writes the triple's dataset as per-year OneFlux CSV
// files. OneFlux input is defined for L3 and L4 only; the level defaults
// to L4 when empty.
func (c *Client) ExportOneFluxCSV(outdir, site, version, level string) ([]string, error) {
	if level == "" {
		level = "L4"
	}
	if level != "L3" && level != "L4" {
		return nil, &export.ExportError{Path: outdir,
			Err: fmt.Errorf("oneflux export supports L3 or L4, not %q", level)}
	}
	ds, err := c.Dataset(site, version, level)
	if err != nil {
		return nil, err
	}
	return export.OneFluxCSV(outdir, ds)
}

var timeArgLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimeArg(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeArgLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("fluxdata: unparseable time %q (want ISO format, e.g. 2009-01-01 12:30)", s)
}
