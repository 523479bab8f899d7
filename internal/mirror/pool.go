package mirror

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"sync"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/storage"
)

type chapterState struct {
	mu          sync.Mutex
	doneImages  int
	totalImages int
	doneBytes   int64
}

func (cs *chapterState) step(pr Progress) {
	cs.mu.Lock()
	cs.doneImages++
	if pr != nil {
		pr.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
	}
	cs.mu.Unlock()
}

// mirrorPages copies urls into the chapter's cache folder with a bounded
// worker pool. Pages keep their scraped position as page number, so a failed
// page leaves a gap. Returned rows are in page order.
func (p *Pipeline) mirrorPages(ctx context.Context, ch *catalog.ChapterSource, urls []string, pr Progress) ([]catalog.CachedPage, int64, []error) {
	total := len(urls)
	maxParallel := p.workers
	if maxParallel > total && total > 0 {
		maxParallel = total
	}

	cs := &chapterState{totalImages: total}
	if pr != nil {
		pr.Update(0, total, 0)
		defer pr.MarkDone()
	}

	results := make([]*catalog.CachedPage, total)
	var errs []error

	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			var last int64
			progress := func(done int64) {
				delta := done - last
				if delta <= 0 {
					return
				}
				last = done

				cs.mu.Lock()
				cs.doneBytes += delta
				if pr != nil {
					pr.Update(cs.doneImages, cs.totalImages, cs.doneBytes)
				}
				cs.mu.Unlock()
			}

			page, err := p.mirrorPage(ctx, ch, i+1, urls[i], progress)
			if err != nil {
				cs.mu.Lock()
				errs = append(errs, fmt.Errorf("page %d: %w", i+1, err))
				cs.mu.Unlock()
			} else {
				results[i] = &page
			}
			cs.step(pr)
		}
	}

	wg.Add(maxParallel)
	for w := 0; w < maxParallel; w++ {
		go worker()
	}

feed:
	for i := range urls {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()

	pages := make([]catalog.CachedPage, 0, total)
	for _, r := range results {
		if r != nil {
			pages = append(pages, *r)
		}
	}

	return pages, cs.doneBytes, errs
}

func (p *Pipeline) mirrorPage(ctx context.Context, ch *catalog.ChapterSource, n int, src string, progress func(done int64)) (catalog.CachedPage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.pageTimeout)
	defer cancel()

	st, err := p.opener.Open(ctx, src, originOf(src))
	if err != nil {
		return catalog.CachedPage{}, err
	}
	defer func() { _ = st.Body.Close() }()

	ext := storage.ExtFromURL(src)
	key := storage.CachePagePath(ch.ComicID, ch.ChapterNumber, n, ext)

	body := &progressReader{r: st.Body, progress: progress}
	if err := p.objects.Put(ctx, key, body, st.Size, contentType(st.ContentType, ext), storage.CacheControlMirror); err != nil {
		return catalog.CachedPage{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return catalog.CachedPage{
		ChapterID:      ch.ChapterID,
		PageNumber:     n,
		SourceImageURL: src,
		CachedImageURL: p.objects.PublicURL(key),
	}, nil
}

// originOf returns scheme://host of raw, which image hosts expect as referer.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func contentType(header, ext string) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	return storage.ContentTypeFor(ext)
}

// progressReader reports the running byte count as the upload consumes it.
type progressReader struct {
	r        io.Reader
	total    int64
	progress func(done int64)
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.total += int64(n)
		if pr.progress != nil {
			pr.progress(pr.total)
		}
	}
	return n, err
}
