// Package catalog resolves sites, versions and processing levels from the
// TERN OzFlux THREDDS catalog and locates dataset access URLs.
package catalog

import (
	"errors"
	"sort"
	"strings"
)

// KindDefault is the 30-minute dataset every (site, version, level) triple
// publishes. Coarser products (daily, monthly, ...) exist for L6 only.
const KindDefault = "30min"

// derivedKinds are the dataset-name suffixes the server uses for
// aggregated products.
var derivedKinds = map[string]bool{
	"daily":      true,
	"monthly":    true,
	"annual":     true,
	"cumulative": true,
	"summary":    true,
}

// DatasetRef identifies one remote dataset payload. Resolution is
// deterministic: the same triple yields an equal reference for a given
// catalog snapshot.
type DatasetRef struct {
	Site    string
	Version string
	Level   string
	Kind    string // "30min", "daily", "monthly", "annual", "cumulative", "summary"
	Name    string // file name on the server, e.g. "AdelaideRiver_L3.nc"
	URL     string // fileServer access URL
}

// Sites lists the site names published at the catalog root, in catalog
// order.
func (c *Client) Sites() ([]string, error) {
	entries, err := c.items(c.catalogURL())
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &RemoteAccessError{URL: c.catalogURL(), Err: err}
		}
		return nil, err
	}
	sites := make([]string, 0, len(entries))
	for _, e := range entries {
		sites = append(sites, e.Name)
	}
	return sites, nil
}

// Versions lists the dataset versions available for a site, sorted
// ascending. The version labels sort lexically ("2022_v1" < "2022_v2" <
// "2023_v1"), so the last element is the latest release.
func (c *Client) Versions(site string) ([]string, error) {
	entries, err := c.items(c.catalogURL(site))
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &NotFoundError{Site: site}
		}
		return nil, err
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		versions = append(versions, e.Name)
	}
	sort.Strings(versions)
	return versions, nil
}

// LatestVersion returns the newest version label for a site.
func (c *Client) LatestVersion(site string) (string, error) {
	versions, err := c.Versions(site)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", &NotFoundError{Site: site}
	}
	return versions[len(versions)-1], nil
}

// ProcessingLevels lists the quality tiers published for a (site, version)
// pair, sorted ascending (L3 before L4 before L6).
func (c *Client) ProcessingLevels(site, version string) ([]string, error) {
	entries, err := c.items(c.catalogURL(site, version))
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &NotFoundError{Site: site, Version: version}
		}
		return nil, err
	}
	levels := make([]string, 0, len(entries))
	for _, e := range entries {
		levels = append(levels, e.Name)
	}
	sort.Strings(levels)
	return levels, nil
}

// DatasetRefs lists the dataset payloads for a triple, keyed by kind.
// Dataset file names encode derived granularities as a suffix
// ("Warra_L6_Daily.nc"); everything else is the 30-minute product.
func (c *Client) DatasetRefs(site, version, level string) (map[string]DatasetRef, error) {
	entries, err := c.items(c.catalogURL(site, version, level, "default"))
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &NotFoundError{Site: site, Version: version, Level: level}
		}
		return nil, err
	}
	refs := make(map[string]DatasetRef, len(entries))
	for _, e := range entries {
		kind := datasetKind(e.Name)
		refs[kind] = DatasetRef{
			Site:    site,
			Version: version,
			Level:   level,
			Kind:    kind,
			Name:    e.Name,
			URL:     e.URL,
		}
	}
	return refs, nil
}

func datasetKind(name string) string {
	parts := strings.Split(strings.TrimSuffix(name, ".nc"), "_")
	if len(parts) >= 3 {
		if last := strings.ToLower(parts[len(parts)-1]); derivedKinds[last] {
			return last
		}
	}
	return KindDefault
}

// Resolve validates a (site, version, level) triple against the catalog and
// returns the reference of its default 30-minute dataset. An unknown site
// yields NotFoundError; a version or level that exists elsewhere but not
// for this site yields InvalidSelectionError.
func (c *Client) Resolve(site, version, level string) (DatasetRef, error) {
	return c.ResolveKind(site, version, level, KindDefault)
}

// ResolveKind resolves a triple to the dataset of the requested kind.
func (c *Client) ResolveKind(site, version, level, kind string) (DatasetRef, error) {
	versions, err := c.Versions(site)
	if err != nil {
		return DatasetRef{}, err
	}
	if !contains(versions, version) {
		return DatasetRef{}, &InvalidSelectionError{
			Site: site, Version: version, Level: level,
			Reason: "version not published for site",
		}
	}

	levels, err := c.ProcessingLevels(site, version)
	if err != nil {
		return DatasetRef{}, err
	}
	if !contains(levels, level) {
		return DatasetRef{}, &InvalidSelectionError{
			Site: site, Version: version, Level: level,
			Reason: "processing level not published for site version",
		}
	}

	refs, err := c.DatasetRefs(site, version, level)
	if err != nil {
		return DatasetRef{}, err
	}
	ref, ok := refs[kind]
	if !ok {
		return DatasetRef{}, &InvalidSelectionError{
			Site: site, Version: version, Level: level,
			Reason: "no " + kind + " dataset published",
		}
	}
	return ref, nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
