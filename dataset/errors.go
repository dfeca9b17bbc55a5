package dataset

import (
	"fmt"
	"strings"
)

// UnknownVariableError reports requested variables absent from a dataset.
type UnknownVariableError struct {
	Names []string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("dataset: unknown variable(s): %s", strings.Join(e.Names, ", "))
}
