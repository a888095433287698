package mirror

import (
	"fmt"
	"strings"
)

// Credentials identify the destination sheet. Both values are required.
type Credentials struct {
	APIKey  string
	SheetID string
}

// Validate reports ErrNotConfigured when either credential is missing.
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.APIKey) == "":
		return fmt.Errorf("%w: missing api key", ErrNotConfigured)
	case strings.TrimSpace(c.SheetID) == "":
		return fmt.Errorf("%w: missing sheet id", ErrNotConfigured)
	}
	return nil
}

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}
