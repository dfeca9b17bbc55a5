package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// errNotFound marks a catalog page that the server reported missing. The
// resolver converts it into a NotFoundError carrying the offending key.
var errNotFound = errors.New("catalog entry not found")

// NotFoundError reports an unknown site, version or processing level.
type NotFoundError struct {
	Site    string
	Version string
	Level   string
}

func (e *NotFoundError) Error() string {
	var parts []string
	if e.Site != "" {
		parts = append(parts, fmt.Sprintf("site %q", e.Site))
	}
	if e.Version != "" {
		parts = append(parts, fmt.Sprintf("version %q", e.Version))
	}
	if e.Level != "" {
		parts = append(parts, fmt.Sprintf("processing level %q", e.Level))
	}
	return "catalog: not found: " + strings.Join(parts, ", ")
}

// InvalidSelectionError reports a well-formed (site, version, level) triple
// whose components do not exist together in the catalog.
type InvalidSelectionError struct {
	Site    string
	Version string
	Level   string
	Reason  string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("catalog: invalid selection site=%q version=%q level=%q: %s",
		e.Site, e.Version, e.Level, e.Reason)
}

// RemoteAccessError reports a network or server failure talking to the
// THREDDS service. Failures are surfaced to the caller, never retried past
// the catalog client's transient-status backoff.
type RemoteAccessError struct {
	URL string
	Err error
}

func (e *RemoteAccessError) Error() string {
	return fmt.Sprintf("catalog: remote access %s: %v", e.URL, e.Err)
}

func (e *RemoteAccessError) Unwrap() error { return e.Err }
