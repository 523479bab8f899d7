package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Preview any    `json:"preview,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := fromError(err)

	level := slog.LevelWarn
	if ae.HTTPStatus >= 500 {
		level = slog.LevelError
	}
	s.log.Log(r.Context(), level, "request failed",
		"request_id", chimw.GetReqID(r.Context()),
		"path", r.URL.Path,
		"code", ae.Code,
		"err", errors.Unwrap(ae))

	writeJSON(w, ae.HTTPStatus, errorEnvelope{Error: ae.Message, Code: ae.Code, Preview: ae.Preview})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return BadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
