package generic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangamirror/internal/providers"
)

const chapterHTML = `<html><body>
<div id="readerarea">
  <img src="https://cdn.test/img/001.jpg">
  <img src="https://cdn.test/lazy/loading.gif" data-src="https://cdn.test/img/002.jpg">
  <img data-lazy-src="/img/003.webp">
  <img data-original="https://cdn.test/img/004.png">
  <img src="https://cdn.test/assets/spinner.svg">
  <img src="a.jpg">
  <img src="https://cdn.test/img/001.jpg">
</div>
<img class="logo" src="https://cdn.test/logo-large.png">
</body></html>`

func TestScrapeImages(t *testing.T) {
	url := "https://reader.test/chapter-1/"
	stub := &stubFetcher{pages: map[string]string{url: chapterHTML}}

	imgs, err := NewScraper(stub, nil).ScrapeImages(context.Background(), url, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://cdn.test/img/001.jpg",
		"https://cdn.test/img/002.jpg",
		"https://reader.test/img/003.webp",
		"https://cdn.test/img/004.png",
		"https://cdn.test/img/001.jpg",
	}, imgs, "a repeated page stays a separate page")

	require.Len(t, stub.calls, 1)
	assert.Equal(t, url, stub.calls[0].Referer, "chapter page is its own referer")
}

func TestScrapeImagesCustomSelector(t *testing.T) {
	url := "https://reader.test/chapter-1/"
	stub := &stubFetcher{pages: map[string]string{url: chapterHTML}}

	imgs, err := NewScraper(stub, nil).ScrapeImages(context.Background(), url, "img.logo")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.test/logo-large.png"}, imgs)

	imgs, err = NewScraper(stub, nil).ScrapeImages(context.Background(), url, ".nothing img")
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func TestScrapeImagesEmbeddedReader(t *testing.T) {
	url := "https://reader.test/ch-2/"
	page := `<html><body><div id="readerarea"></div>
<script>ts_reader.run({"prevUrl":"","sources":[{"source":"Server 1","images":["https:\/\/cdn.test\/p\/01.jpg","https:\/\/cdn.test\/p\/02.jpg"]},{"source":"Server 2","images":["https:\/\/alt.test\/01.jpg"]}]});</script>
</body></html>`
	stub := &stubFetcher{pages: map[string]string{url: page}}

	imgs, err := NewScraper(stub, nil).ScrapeImages(context.Background(), url, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.test/p/01.jpg", "https://cdn.test/p/02.jpg"}, imgs)
}

func TestEmbeddedNuxtWalk(t *testing.T) {
	body := `<script>window.__NUXT__={"b":{"pages":["https://cdn.test/2.png","https://cdn.test/logo.png"]},"a":"https://cdn.test/1.jpg?x=1"};</script>`
	assert.Equal(t, []string{"https://cdn.test/1.jpg?x=1", "https://cdn.test/2.png"}, embeddedImageURLs(body))
	assert.Nil(t, embeddedImageURLs("<html></html>"))
}

func TestScrapeWithAdapter(t *testing.T) {
	url := "https://id.shinigami.test/chapter/abc"
	page := `<html><body><div class="chapter-images">
		<img data-src="https://cdn.shinigami.test/01.jpg">
		<img src="https://cdn.shinigami.test/loading.gif">
		<img src=" https://cdn.shinigami.test/02.jpg ">
	</div></body></html>`
	stub := &stubFetcher{pages: map[string]string{url: page}}

	a, ok := providers.AdapterFor(providers.SourceShinigami)
	require.True(t, ok)

	imgs, err := NewScraper(stub, nil).ScrapeWithAdapter(context.Background(), url, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.shinigami.test/01.jpg", "https://cdn.shinigami.test/02.jpg"}, imgs)
}

func TestScrapeImagesFetchFailure(t *testing.T) {
	stub := &stubFetcher{pages: map[string]string{}}
	_, err := NewScraper(stub, nil).ScrapeImages(context.Background(), "https://reader.test/missing", "")
	var se *Error
	assert.ErrorAs(t, err, &se)
}
