package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangamirror/internal/ingest"
	"github.com/brogergvhs/mangamirror/internal/mirror"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeResponse struct {
	*ingest.Response
	RateLimit RateLimit `json:"rateLimit"`
}

// POST /api/v1/scrape
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	allowed, rl := s.limiter.Allow(actor)
	if !allowed {
		retry := int(math.Ceil(60 / float64(s.limiter.perMinute)))
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		s.writeError(w, r, RateLimited(retry))
		return
	}

	var req ingest.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, BadRequest("URL is required"))
		return
	}
	req.Actor = actor

	resp, err := s.ingest.Scrape(r.Context(), req)
	if err != nil {
		ae := fromError(err)
		if resp != nil && resp.Comic != nil {
			ae.Preview = resp.Comic
		}
		s.writeError(w, r, ae)
		return
	}

	writeJSON(w, http.StatusOK, scrapeResponse{Response: resp, RateLimit: rl})
}

type cacheRequest struct {
	ChapterID string `json:"chapterId"`
}

type cacheResponse struct {
	Success bool `json:"success"`
	*mirror.Result
}

// POST /api/v1/cache
func (s *Server) cacheChapter(w http.ResponseWriter, r *http.Request) {
	var req cacheRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ChapterID) == "" {
		s.writeError(w, r, BadRequest("chapterId is required"))
		return
	}

	res, err := s.cache.EnsureCached(r.Context(), req.ChapterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cacheResponse{Success: true, Result: res})
}

type cleanupResponse struct {
	Success bool `json:"success"`
	mirror.SweepResult
}

// POST /api/v1/cache/cleanup[?limit=n]
func (s *Server) cleanup(w http.ResponseWriter, r *http.Request) {
	limit := s.sweepLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, BadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	res, err := s.sweeper.Sweep(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cleanupResponse{Success: true, SweepResult: res})
}

type cbzResponse struct {
	Success bool `json:"success"`
	*ingest.CBZResult
}

// POST /api/v1/cbz (multipart: file, comic_id, chapter_number)
func (s *Server) uploadCBZ(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, r, BadRequest("invalid multipart form: "+err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, BadRequest("No CBZ file provided"))
		return
	}
	defer func() { _ = file.Close() }()

	req := ingest.CBZRequest{
		Filename: hdr.Filename,
		Data:     file,
		Size:     hdr.Size,
		ComicID:  strings.TrimSpace(r.FormValue("comic_id")),
		Actor:    actorFrom(r),
	}
	if v := strings.TrimSpace(r.FormValue("chapter_number")); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 {
			s.writeError(w, r, BadRequest("chapter_number must be a positive number"))
			return
		}
		req.ChapterNumber = n
	}

	res, err := s.ingest.IngestCBZ(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cbzResponse{Success: true, CBZResult: res})
}
