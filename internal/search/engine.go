// Package search stores notes with their embeddings and answers semantic
// search and clustering requests over them.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/shiori/internal/cluster"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine is the note service: it validates input, persists notes, keeps
// their embeddings current and runs search and clustering per owner.
type Engine struct {
	storage  storage.Storage
	encoder  *embedding.Encoder
	clusters *cluster.Engine
	search   config.SearchConfig
	cluster  config.ClusterConfig
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a note engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	encoder *embedding.Encoder,
	clusters *cluster.Engine,
	searchCfg config.SearchConfig,
	clusterCfg config.ClusterConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		storage:  store,
		encoder:  encoder,
		clusters: clusters,
		search:   searchCfg,
		cluster:  clusterCfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the model tag of the engine's encoder.
func (e *Engine) Model() vector.ModelTag {
	return e.encoder.Model()
}

// CreateBook validates input and stores a new book for owner.
func (e *Engine) CreateBook(ctx context.Context, owner string, input *models.BookInput) (*models.Book, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	book := &models.Book{
		ID:      uuid.New().String(),
		OwnerID: owner,
		Title:   input.Title,
		Author:  input.Author,
	}
	if err := e.storage.CreateBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// ListBooks returns a page of the owner's books.
func (e *Engine) ListBooks(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Book, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return e.storage.ListBooks(ctx, owner, opts.Offset, opts.Limit)
}

// CreateNote stores a new note and its embedding.
func (e *Engine) CreateNote(ctx context.Context, owner string, input *models.NoteInput) (*models.Note, error) {
	note, err := e.prepareNote(ctx, owner, input)
	if err != nil {
		return nil, err
	}
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	model, v, err := e.encodeNote(ctx, note)
	if err != nil {
		return nil, err
	}
	if err := e.storage.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	if err := e.storeEmbedding(ctx, note, model, v); err != nil {
		if delErr := e.storage.DeleteNote(ctx, owner, note.ID); delErr != nil {
			e.logger.Warn("failed to remove note without embedding",
				zap.String("note_id", note.ID), zap.Error(delErr))
		}
		return nil, err
	}
	e.logger.Debug("note created", zap.String("note_id", note.ID), zap.String("owner", owner))
	return note, nil
}

// ImportNote creates or replaces the note with input.ID. The note is only
// re-embedded when its text changed or it has no embedding for the current model.
func (e *Engine) ImportNote(ctx context.Context, owner string, input *models.NoteInput) (*models.Note, error) {
	if input.ID == "" {
		return nil, fmt.Errorf("%w: import requires a note id", vector.ErrInvalidParameter)
	}
	note, err := e.prepareNote(ctx, owner, input)
	if err != nil {
		return nil, err
	}
	existing, err := e.storage.GetNote(ctx, owner, note.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	unchanged := existing != nil && existing.Text == note.Text && sameBook(existing.BookID, note.BookID)
	if unchanged {
		return existing, e.ensureEmbedded(ctx, owner, existing)
	}
	model, v, err := e.encodeNote(ctx, note)
	if err != nil {
		return nil, err
	}
	if err := e.storage.SaveNote(ctx, note); err != nil {
		return nil, err
	}
	if err := e.storeEmbedding(ctx, note, model, v); err != nil {
		return nil, err
	}
	return note, nil
}

func (e *Engine) prepareNote(ctx context.Context, owner string, input *models.NoteInput) (*models.Note, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if input.BookID != nil {
		if _, err := e.storage.GetBook(ctx, owner, *input.BookID); err != nil {
			return nil, err
		}
	}
	return &models.Note{
		ID:      input.ID,
		OwnerID: owner,
		BookID:  input.BookID,
		Text:    Preprocess(input.Text),
	}, nil
}

func (e *Engine) ensureEmbedded(ctx context.Context, owner string, note *models.Note) error {
	missing, err := e.storage.ListNotesWithoutEmbedding(ctx, owner, e.encoder.Model())
	if err != nil {
		return err
	}
	for _, m := range missing {
		if m.ID == note.ID {
			return e.embedNote(ctx, note)
		}
	}
	return nil
}

func (e *Engine) embedNote(ctx context.Context, note *models.Note) error {
	model, v, err := e.encodeNote(ctx, note)
	if err != nil {
		return err
	}
	return e.storeEmbedding(ctx, note, model, v)
}

func (e *Engine) encodeNote(ctx context.Context, note *models.Note) (vector.ModelTag, vector.Vector, error) {
	model, v, err := e.encoder.Encode(ctx, note.Text)
	if err != nil {
		return "", nil, fmt.Errorf("failed to embed note %s: %w", note.ID, err)
	}
	return model, v, nil
}

func (e *Engine) storeEmbedding(ctx context.Context, note *models.Note, model vector.ModelTag, v vector.Vector) error {
	if err := e.storage.SaveEmbedding(ctx, note.ID, model, v); err != nil {
		return fmt.Errorf("failed to store embedding for note %s: %w", note.ID, err)
	}
	return nil
}

// GetNote returns one of the owner's notes.
func (e *Engine) GetNote(ctx context.Context, owner, id string) (*models.Note, error) {
	return e.storage.GetNote(ctx, owner, id)
}

// ListNotes returns a page of the owner's notes, newest first.
func (e *Engine) ListNotes(ctx context.Context, owner string, opts models.ListOptions) ([]*models.Note, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return e.storage.ListNotes(ctx, owner, opts)
}

// DeleteNote removes one of the owner's notes.
func (e *Engine) DeleteNote(ctx context.Context, owner, id string) error {
	return e.storage.DeleteNote(ctx, owner, id)
}

// Search ranks the owner's notes by similarity to the query text.
func (e *Engine) Search(ctx context.Context, owner string, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(e.search.DefaultLimit); err != nil {
		return nil, err
	}

	var (
		qvec  vector.Vector
		model vector.ModelTag
		rows  []*models.EmbeddedNote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		model, qvec, err = e.encoder.Encode(gctx, query.Query)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = e.storage.ListEmbeddedNotes(gctx, storage.EmbeddingFilter{
			OwnerID: owner,
			Model:   e.encoder.Model(),
			BookID:  query.BookID,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates, byID, err := decodeCandidates(rows, model)
	if err != nil {
		return nil, err
	}
	ranked, err := vector.Rank(qvec, candidates, query.Limit())
	if err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{
		Results: make([]models.SearchHit, len(ranked)),
		Query:   query.Query,
		Model:   model,
		Total:   len(ranked),
	}
	for i, r := range ranked {
		resp.Results[i] = hit(byID[r.Ref], r.Score)
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	e.logger.Debug("search",
		zap.String("owner", owner),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(ranked)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// Cluster groups the owner's embedded notes into topical clusters.
func (e *Engine) Cluster(ctx context.Context, owner string, req *models.ClusterRequest) (*models.ClusterResponse, error) {
	start := time.Now()
	req.ApplyDefaults(e.cluster.DefaultK, e.cluster.DefaultPerCluster)

	model := e.encoder.Model()
	rows, err := e.storage.ListEmbeddedNotes(ctx, storage.EmbeddingFilter{
		OwnerID: owner,
		Model:   model,
		BookID:  req.BookID,
	})
	if err != nil {
		return nil, err
	}
	candidates, byID, err := decodeCandidates(rows, model)
	if err != nil {
		return nil, err
	}
	members := make([]cluster.Member, len(candidates))
	for i, c := range candidates {
		members[i] = cluster.Member{Ref: c.Ref, Vector: c.Vector, Text: byID[c.Ref].Text}
	}

	summaries, err := e.clusters.Cluster(members, *req.K, *req.PerCluster)
	if err != nil {
		return nil, err
	}

	resp := &models.ClusterResponse{
		Clusters: make([]models.ClusterView, len(summaries)),
		Model:    model,
		Notes:    len(members),
	}
	for i, s := range summaries {
		view := models.ClusterView{
			ClusterID:       s.ClusterID,
			Size:            s.Size,
			Keywords:        s.Keywords,
			Representatives: make([]models.SearchHit, len(s.Representatives)),
		}
		for j, r := range s.Representatives {
			view.Representatives[j] = hit(byID[r.Ref], r.Score)
		}
		resp.Clusters[i] = view
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	e.logger.Debug("cluster",
		zap.String("owner", owner),
		zap.Int("notes", len(members)),
		zap.Int("clusters", len(summaries)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// Reembed embeds every note of owner that has no embedding for the current model.
func (e *Engine) Reembed(ctx context.Context, owner string) (*models.ReembedResult, error) {
	notes, err := e.storage.ListNotesWithoutEmbedding(ctx, owner, e.encoder.Model())
	if err != nil {
		return nil, err
	}
	res := &models.ReembedResult{Model: e.encoder.Model()}
	for _, n := range notes {
		if err := e.embedNote(ctx, n); err != nil {
			return res, err
		}
		res.Embedded++
	}
	if res.Embedded > 0 {
		e.logger.Info("re-embedded notes", zap.String("owner", owner), zap.Int("count", res.Embedded))
	}
	return res, nil
}

// Status reports counts for owner and encoder details.
func (e *Engine) Status(ctx context.Context, owner string) (*models.Status, error) {
	notes, err := e.storage.CountNotes(ctx, owner)
	if err != nil {
		return nil, err
	}
	books, err := e.storage.CountBooks(ctx, owner)
	if err != nil {
		return nil, err
	}
	embedded, err := e.storage.CountEmbeddings(ctx, owner, e.encoder.Model())
	if err != nil {
		return nil, err
	}
	return &models.Status{
		Notes:         notes,
		Books:         books,
		EmbeddedNotes: embedded,
		Model:         e.encoder.Model(),
		Dimensions:    e.encoder.Dimensions(),
		CachedEntries: e.encoder.CachedEntries(),
		StorageDriver: e.storage.Driver(),
	}, nil
}

// decodeCandidates decodes stored vectors. Rows tagged with another model
// than want are skipped.
func decodeCandidates(rows []*models.EmbeddedNote, want vector.ModelTag) ([]vector.Candidate, map[string]*models.EmbeddedNote, error) {
	candidates := make([]vector.Candidate, 0, len(rows))
	byID := make(map[string]*models.EmbeddedNote, len(rows))
	for _, row := range rows {
		if row.Model != want {
			continue
		}
		v, err := vector.Decode(row.Embedding)
		if err != nil {
			return nil, nil, fmt.Errorf("note %s: %w", row.NoteID, err)
		}
		candidates = append(candidates, vector.Candidate{Ref: row.NoteID, Vector: v})
		byID[row.NoteID] = row
	}
	return candidates, byID, nil
}

func hit(row *models.EmbeddedNote, score float64) models.SearchHit {
	return models.SearchHit{NoteID: row.NoteID, Score: score, Text: row.Text, BookID: row.BookID}
}

func sameBook(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
