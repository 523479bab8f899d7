package generic

import (
	"errors"
	"fmt"

	"github.com/brogergvhs/mangamirror/internal/providers"
)

var ErrNoChaptersFound = errors.New("no chapters found")

// Error wraps a fetch or parse failure. Partial holds whatever was extracted
// before the failure, when anything was.
type Error struct {
	URL     string
	Err     error
	Partial *providers.ScrapedComic
}

func (e *Error) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
