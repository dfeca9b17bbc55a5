package export

import "fmt"

// ExportError reports an output I/O failure.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export: %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
