package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	gojson "github.com/goccy/go-json"
	"github.com/hyperjump/shiori/internal/cluster"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var input models.BookInput
	if !s.decode(w, r, &input) {
		return
	}
	book, err := s.engine.CreateBook(r.Context(), s.user(r), &input)
	if err != nil {
		s.fail(w, "create book", err)
		return
	}
	respondJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.listOptions(w, r)
	if !ok {
		return
	}
	books, err := s.engine.ListBooks(r.Context(), s.user(r), opts)
	if err != nil {
		s.fail(w, "list books", err)
		return
	}
	if books == nil {
		books = []*models.Book{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"books": books})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var input models.NoteInput
	if !s.decode(w, r, &input) {
		return
	}
	// Clients cannot pick note IDs; imported notes get theirs from the file path.
	input.ID = ""
	note, err := s.engine.CreateNote(r.Context(), s.user(r), &input)
	if err != nil {
		s.fail(w, "create note", err)
		return
	}
	respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.listOptions(w, r)
	if !ok {
		return
	}
	if bookID := r.URL.Query().Get("book_id"); bookID != "" {
		opts.BookID = &bookID
	}
	notes, err := s.engine.ListNotes(r.Context(), s.user(r), opts)
	if err != nil {
		s.fail(w, "list notes", err)
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.engine.GetNote(r.Context(), s.user(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get note", err)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete note request", zap.String("id", id))
	if err := s.engine.DeleteNote(r.Context(), s.user(r), id); err != nil {
		s.fail(w, "delete note", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleReembed(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Reembed(r.Context(), s.user(r))
	if err != nil {
		s.fail(w, "reembed", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query) {
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query))
	response, err := s.engine.Search(r.Context(), s.user(r), &query)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	s.metrics.ObserveResults("search", len(response.Results))
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	var req models.ClusterRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	response, err := s.engine.Cluster(r.Context(), s.user(r), &req)
	if err != nil {
		s.fail(w, "cluster", err)
		return
	}
	s.metrics.ObserveResults("cluster", response.Notes)
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context(), s.user(r))
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	if s.config.Storage.Driver == config.DriverSQLite && s.config.Storage.DatabasePath != "" {
		if n, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = n
		}
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) user(r *http.Request) string {
	user, _ := UserFromContext(r.Context())
	return user
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := gojson.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptional is decode for requests whose body may be empty.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := gojson.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) listOptions(w http.ResponseWriter, r *http.Request) (models.ListOptions, bool) {
	var opts models.ListOptions
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid "+name)
			return opts, false
		}
		*dst = n
	}
	if q.Get("limit") != "" && opts.Limit == 0 {
		respondError(w, http.StatusBadRequest, "limit must be at least 1")
		return opts, false
	}
	return opts, true
}

// fail maps err to a status code and writes it. Server-side failures are
// logged and reported without internal detail.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
		respondError(w, status, http.StatusText(status))
		return
	}
	s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	respondError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, vector.ErrInvalidParameter),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, cluster.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, embedding.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
