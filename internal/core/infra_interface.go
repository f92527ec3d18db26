package core

import (
	"context"

	"github.com/snapsolve/snapsolve/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	UpsertUserByExternalID(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	CreateProblem(ctx context.Context, p *models.Problem) error
	GetProblemByID(ctx context.Context, id int64) (*models.Problem, error)
	ListProblems(ctx context.Context) ([]models.Problem, error)
	ListProblemsByUser(ctx context.Context, userID int64) ([]models.Problem, error)
	UpdateProblemRating(ctx context.Context, id int64, rating models.Rating) error
	DeleteProblem(ctx context.Context, id int64) error
	CountProblems(ctx context.Context) (int64, error)

	ListUnclassifiedProblems(ctx context.Context) ([]models.Problem, error)
	// SetProblemSubjectIfUnset writes the subject only while the row is still
	// unclassified. Returns false when another writer got there first.
	SetProblemSubjectIfUnset(ctx context.Context, id int64, subject models.Subject) (bool, error)

	SetProblemStorageURL(ctx context.Context, id int64, url string) error

	ListUnembeddedProblemIDs(ctx context.Context, limit int) ([]int64, error)
	SetProblemEmbedding(ctx context.Context, id int64, embedding []float32) error
	SearchSimilarProblems(ctx context.Context, id int64, limit int) ([]models.Problem, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// Kept abstract so AWS can be swapped for MinIO, GCP, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// LLMProvider is the single-call AI backend contract: a prompt plus an
// optional image in, free text out.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, image []byte, mimeType string) (string, error)
}

// EmbeddingProvider turns texts into vectors for similarity search.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
