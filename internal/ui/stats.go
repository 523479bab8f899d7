package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/mangamirror/internal/util"
)

// Stats accumulates totals across concurrently mirrored chapters.
type Stats struct {
	Chapters atomic.Int64
	Pages    atomic.Int64
	Failed   atomic.Int64
	Bytes    atomic.Int64
	Reused   atomic.Int64
}

func (s *Stats) Print(w io.Writer, title string, took time.Duration) {
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "%s:\n", title)
	_, _ = fmt.Fprintf(w, "Chapters: %d (%d already cached)\n", s.Chapters.Load(), s.Reused.Load())
	_, _ = fmt.Fprintf(w, "Pages:    %d\n", s.Pages.Load())
	if n := s.Failed.Load(); n > 0 {
		_, _ = fmt.Fprintf(w, "Failed:   %d\n", n)
	}
	_, _ = fmt.Fprintf(w, "Data:     %s\n", util.Human(s.Bytes.Load()))
	_, _ = fmt.Fprintf(w, "Time:     %s\n", took.Round(time.Second))
}
