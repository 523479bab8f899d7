package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/brogergvhs/mangamirror/internal/util"
)

type ProgressManager struct {
	p *mpb.Progress
}

func NewProgressManager(out io.Writer) *ProgressManager {
	p := mpb.New(
		mpb.WithWidth(48),
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &ProgressManager{p: p}
}

// Close waits for every registered bar to finish rendering.
func (pm *ProgressManager) Close() {
	pm.p.Wait()
}

// Register adds a bar labelled prefix counting unit ("pages", "images").
func (pm *ProgressManager) Register(prefix, unit string) *ProgressHandle {
	h := &ProgressHandle{prefix: prefix, unit: unit, start: time.Now()}
	h.bar = pm.p.New(
		0,
		mpb.BarStyle().Rbound("]"),
		mpb.PrependDecorators(decor.Name(h.prefix+"  ")),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d "+h.unit, decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return " | " + util.Human(h.bytes.Load())
			}),
			decor.Any(func(_ decor.Statistics) string {
				if h.final.Load() {
					return fmt.Sprintf(" | %ds", h.elapsed.Load())
				}
				return fmt.Sprintf(" | %ds", int(time.Since(h.start).Seconds()))
			}),
		),
	)
	return h
}

// ProgressHandle drives one bar. It satisfies the Progress interfaces of the
// mirror and ingest packages.
type ProgressHandle struct {
	prefix string
	unit   string
	bar    *mpb.Bar
	start  time.Time

	total   atomic.Int64
	bytes   atomic.Int64
	elapsed atomic.Int64
	final   atomic.Bool
}

func (h *ProgressHandle) Update(done, total int, bytes int64) {
	if h.final.Load() {
		return
	}

	if total > 0 {
		h.total.Store(int64(total))
		h.bar.SetTotal(int64(total), false)
	}
	h.bytes.Store(bytes)
	h.bar.SetCurrent(int64(done))
}

func (h *ProgressHandle) MarkDone() {
	if h.final.Swap(true) {
		return
	}

	h.elapsed.Store(int64(time.Since(h.start).Seconds()))
	total := h.total.Load()
	h.bar.SetCurrent(total)
	h.bar.SetTotal(total, true)
}

// Abort removes the bar, used when a chapter fails before any page lands.
func (h *ProgressHandle) Abort() {
	if h.final.Swap(true) {
		return
	}
	h.bar.Abort(true)
}
