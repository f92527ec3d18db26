package services

import (
	"context"
	"fmt"
	"time"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/core/cache"
	"github.com/snapsolve/snapsolve/internal/models"
)

const (
	// Detail pages change less often than the feeds, so they cache longer.
	listCacheTTL   = 2 * time.Minute
	detailCacheTTL = 10 * time.Minute
)

const keyAllProblems = "problems:all"

func keyUserProblems(userID int64) string {
	return fmt.Sprintf("problems:user:%d", userID)
}

func keyProblem(id int64) string {
	return fmt.Sprintf("problem:%d", id)
}

// ProblemService wraps problem persistence with cache read-through on reads
// and cache invalidation on writes, plus the ownership rule around ratings.
type ProblemService struct {
	db    core.DbClient
	cache *cache.TTLCache
}

func NewProblemService(db core.DbClient, c *cache.TTLCache) *ProblemService {
	return &ProblemService{db: db, cache: c}
}

// Create persists a new problem and invalidates the list views it appears in.
func (s *ProblemService) Create(ctx context.Context, p *models.Problem) error {
	if err := s.db.CreateProblem(ctx, p); err != nil {
		return fmt.Errorf("create problem: %w", err)
	}
	s.cache.Delete(keyAllProblems)
	if p.UserID != nil {
		s.cache.Delete(keyUserProblems(*p.UserID))
	}
	return nil
}

// List returns all problems newest-first, or only forUser's when set.
func (s *ProblemService) List(ctx context.Context, forUser *int64) ([]models.Problem, error) {
	key := keyAllProblems
	if forUser != nil {
		key = keyUserProblems(*forUser)
	}

	if v, ok := s.cache.Get(key); ok {
		if problems, ok := v.([]models.Problem); ok {
			return problems, nil
		}
	}

	var (
		problems []models.Problem
		err      error
	)
	if forUser != nil {
		problems, err = s.db.ListProblemsByUser(ctx, *forUser)
	} else {
		problems, err = s.db.ListProblems(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.cache.SetTTL(key, problems, listCacheTTL)
	return problems, nil
}

// GetByID returns one problem or core.ErrNotFound.
func (s *ProblemService) GetByID(ctx context.Context, id int64) (*models.Problem, error) {
	key := keyProblem(id)
	if v, ok := s.cache.Get(key); ok {
		if p, ok := v.(*models.Problem); ok {
			return p, nil
		}
	}

	p, err := s.db.GetProblemByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.SetTTL(key, p, detailCacheTTL)
	return p, nil
}

// SetRating records the owner's verdict. Only the owning user may rate;
// later ratings overwrite earlier ones.
func (s *ProblemService) SetRating(ctx context.Context, id int64, rating models.Rating, requesterID int64) error {
	if !models.ValidRating(rating) {
		return fmt.Errorf("%w: rating must be %q or %q", core.ErrValidation, models.RatingThumbsUp, models.RatingThumbsDown)
	}

	// Ownership check against storage, not the cache.
	p, err := s.db.GetProblemByID(ctx, id)
	if err != nil {
		return err
	}
	if p.UserID == nil || *p.UserID != requesterID {
		return core.ErrPermissionDenied
	}

	if err := s.db.UpdateProblemRating(ctx, id, rating); err != nil {
		return err
	}

	s.cache.Delete(keyProblem(id))
	s.cache.Delete(keyAllProblems)
	s.cache.Delete(keyUserProblems(*p.UserID))
	return nil
}

// Delete removes a problem the requester owns. Returns the deleted record so
// the caller can clean up anything attached to it (e.g. the archived upload).
func (s *ProblemService) Delete(ctx context.Context, id int64, requesterID int64) (*models.Problem, error) {
	p, err := s.db.GetProblemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID == nil || *p.UserID != requesterID {
		return nil, core.ErrPermissionDenied
	}

	if err := s.db.DeleteProblem(ctx, id); err != nil {
		return nil, err
	}

	s.cache.Delete(keyProblem(id))
	s.cache.Delete(keyAllProblems)
	s.cache.Delete(keyUserProblems(*p.UserID))
	return p, nil
}

// Count reports how many problems exist; used by the diagnostics surface.
func (s *ProblemService) Count(ctx context.Context) (int64, error) {
	return s.db.CountProblems(ctx)
}
