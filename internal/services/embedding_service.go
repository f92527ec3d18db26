package services

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
)

const (
	backfillScanLimit = 500
	backfillWorkers   = 4
)

// EmbeddingService maintains the vector column behind the similar-problems
// lookup: per-problem embedding on create and a backfill job for rows that
// predate the feature or whose embedding failed.
type EmbeddingService struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
}

func NewEmbeddingService(db core.DbClient, embedder core.EmbeddingProvider) *EmbeddingService {
	return &EmbeddingService{db: db, embedder: embedder}
}

// embeddingText is what gets embedded for one problem.
func embeddingText(question *string, response string) string {
	if question != nil && *question != "" {
		return *question + "\n" + response
	}
	return response
}

// EmbedProblem embeds one problem's text and persists the vector.
func (s *EmbeddingService) EmbedProblem(ctx context.Context, id int64, question *string, response string) error {
	vecs, err := s.embedder.EmbedTexts(ctx, []string{embeddingText(question, response)})
	if err != nil {
		return fmt.Errorf("embed problem %d: %w", id, err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("embed problem %d: empty result", id)
	}
	return s.db.SetProblemEmbedding(ctx, id, vecs[0])
}

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
}

// Backfill embeds every problem that has no vector yet, a bounded batch per
// run. Workers fan out over an errgroup; each row is independent, so a
// failure only skips that row.
func (s *EmbeddingService) Backfill(ctx context.Context) (BackfillResult, error) {
	ids, err := s.db.ListUnembeddedProblemIDs(ctx, backfillScanLimit)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("list unembedded: %w", err)
	}

	var embedded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)
	for _, id := range ids {
		g.Go(func() error {
			p, err := s.db.GetProblemByID(gctx, id)
			if err != nil {
				log.Printf("backfill: load problem %d: %v", id, err)
				failed.Add(1)
				return nil
			}
			if err := s.EmbedProblem(gctx, p.ID, p.Question, p.Response); err != nil {
				log.Printf("backfill: %v", err)
				failed.Add(1)
				return nil
			}
			embedded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BackfillResult{}, err
	}

	return BackfillResult{
		Scanned:  len(ids),
		Embedded: int(embedded.Load()),
		Failed:   int(failed.Load()),
	}, nil
}

// Similar returns up to limit problems closest to the given one.
func (s *EmbeddingService) Similar(ctx context.Context, id int64, limit int) ([]models.Problem, error) {
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	// 404 when the anchor problem does not exist.
	if _, err := s.db.GetProblemByID(ctx, id); err != nil {
		return nil, err
	}
	return s.db.SearchSimilarProblems(ctx, id, limit)
}
