package fetch

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

var ErrBodyTooLarge = errors.New("body exceeds size limit")

// Accept-Encoding is set by hand, so net/http leaves decompression to us.
func decodeBody(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		r = fl
	case "br":
		r = brotli.NewReader(resp.Body)
	}

	if limit <= 0 {
		return io.ReadAll(r)
	}

	// one byte past the limit tells a body that fits exactly from one that was cut
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	return b, nil
}
