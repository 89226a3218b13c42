// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/internal/convert"
	"github.com/pdiddy/md2docx/internal/httputil"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pageData feeds the index template.
type pageData struct {
	Markdown string
	Error    string
	Artifact *artifact.Artifact
}

// convertRequest is the JSON body of POST /api/v1/convert.
type convertRequest struct {
	Markdown *string `json:"markdown"`
}

// convertResponse describes a converted document.
type convertResponse struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
	DownloadURL string    `json:"download_url"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{})
}

// convertForm handles the HTML form submission.
func (s *Server) convertForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		status := http.StatusBadRequest
		if isTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		s.renderPage(w, status, pageData{Error: "could not read form: " + err.Error()})
		return
	}
	markdown := r.PostForm.Get("markdown")

	a, err := s.convert(r.Context(), markdown)
	if err != nil {
		s.renderPage(w, statusFor(err), pageData{Markdown: markdown, Error: err.Error()})
		return
	}
	s.renderPage(w, http.StatusOK, pageData{Markdown: markdown, Artifact: a})
}

// convertAPI handles JSON conversion requests.
func (s *Server) convertAPI(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isTooLarge(err) {
			httputil.RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Markdown == nil {
		httputil.RespondError(w, http.StatusBadRequest, "markdown is required")
		return
	}

	a, err := s.convert(r.Context(), *req.Markdown)
	if err != nil {
		httputil.RespondProblem(w, httputil.Problem{
			Status: statusFor(err),
			Detail: err.Error(),
			Kind:   convert.KindOf(err).String(),
		})
		return
	}

	downloadURL := "/download/" + a.ID
	w.Header().Set("Location", downloadURL)
	httputil.RespondJSON(w, http.StatusCreated, convertResponse{
		ID:          a.ID,
		Label:       a.Label,
		Filename:    a.Filename,
		Size:        a.Size,
		ExpiresAt:   a.ExpiresAt,
		DownloadURL: downloadURL,
	})
}

// download streams a converted document.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.artifacts.Get(r.Context(), id, s.now())
	if errors.Is(err, artifact.ErrNotFound) {
		httputil.RespondError(w, http.StatusNotFound, "document not found or expired")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("looking up artifact")
		httputil.RespondError(w, http.StatusInternalServerError, "could not look up document")
		return
	}

	f, err := os.Open(a.Path)
	if errors.Is(err, os.ErrNotExist) {
		httputil.RespondError(w, http.StatusNotFound, "document not found or expired")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("opening artifact")
		httputil.RespondError(w, http.StatusInternalServerError, "could not open document")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	http.ServeContent(w, r, a.Filename, a.CreatedAt, f)
}

// convert runs one conversion bounded by the request timeout.
func (s *Server) convert(ctx context.Context, markdown string) (*artifact.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return s.converter.Convert(ctx, markdown)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("rendering page")
	}
}

// statusFor maps a conversion failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, convert.ErrConversionEngine):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
