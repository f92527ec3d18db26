package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/snapsolve/snapsolve/internal/config"
	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for users

func (c *DatabaseClient) UpsertUserByExternalID(ctx context.Context, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, errors.New("nil user")
	}
	const q = `
		INSERT INTO users (external_id, email, name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    avatar_url = EXCLUDED.avatar_url,
		    updated_at = now()
		RETURNING id, external_id, email, name, avatar_url, created_at, updated_at
	`
	var (
		u      models.User
		avatar sql.NullString
	)
	err := c.db.QueryRowContext(ctx, q, user.ExternalID, user.Email, user.Name, user.AvatarURL).Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Name, &avatar, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if avatar.Valid {
		u.AvatarURL = &avatar.String
	}
	return &u, nil
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const q = `
		SELECT id, external_id, email, name, avatar_url, created_at, updated_at
		FROM users WHERE id = $1
	`
	var (
		u      models.User
		avatar sql.NullString
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Name, &avatar, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if avatar.Valid {
		u.AvatarURL = &avatar.String
	}
	return &u, nil
}

// Implementing the db interface for problems

func (c *DatabaseClient) CreateProblem(ctx context.Context, p *models.Problem) error {
	if p == nil {
		return errors.New("nil problem")
	}
	const q = `
		INSERT INTO problems (user_id, image_data, mime_type, file_name, question, response, subject)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	var subject *string
	if p.Subject != nil {
		s := string(*p.Subject)
		subject = &s
	}
	return c.db.QueryRowContext(ctx, q,
		p.UserID, p.ImageData, p.MimeType, p.FileName, p.Question, p.Response, subject,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

const problemColumns = `
	p.id, p.user_id, p.image_data, p.mime_type, p.file_name, p.question,
	p.response, p.subject, p.rating, p.storage_url, p.created_at, p.updated_at,
	u.id, u.name, u.avatar_url
`

// scanProblem reads one joined problems/users row.
func scanProblem(row interface {
	Scan(dest ...any) error
}) (*models.Problem, error) {
	var (
		p          models.Problem
		userID     sql.NullInt64
		question   sql.NullString
		subject    sql.NullString
		rating     sql.NullString
		storageURL sql.NullString
		ownerID    sql.NullInt64
		ownerName  sql.NullString
		ownerPic   sql.NullString
	)
	err := row.Scan(
		&p.ID, &userID, &p.ImageData, &p.MimeType, &p.FileName, &question,
		&p.Response, &subject, &rating, &storageURL, &p.CreatedAt, &p.UpdatedAt,
		&ownerID, &ownerName, &ownerPic,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.Int64
	}
	if question.Valid {
		p.Question = &question.String
	}
	if subject.Valid {
		s := models.Subject(subject.String)
		p.Subject = &s
	}
	if rating.Valid {
		r := models.Rating(rating.String)
		p.Rating = &r
	}
	if storageURL.Valid {
		p.StorageURL = &storageURL.String
	}
	if ownerID.Valid {
		owner := &models.OwnerInfo{ID: ownerID.Int64, Name: ownerName.String}
		if ownerPic.Valid {
			owner.AvatarURL = &ownerPic.String
		}
		p.Owner = owner
	}
	return &p, nil
}

func (c *DatabaseClient) GetProblemByID(ctx context.Context, id int64) (*models.Problem, error) {
	q := `
		SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`
	p, err := scanProblem(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *DatabaseClient) ListProblems(ctx context.Context) ([]models.Problem, error) {
	q := `
		SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC
	`
	return c.queryProblems(ctx, q)
}

func (c *DatabaseClient) ListProblemsByUser(ctx context.Context, userID int64) ([]models.Problem, error) {
	q := `
		SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC
	`
	return c.queryProblems(ctx, q, userID)
}

func (c *DatabaseClient) queryProblems(ctx context.Context, q string, args ...any) ([]models.Problem, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateProblemRating(ctx context.Context, id int64, rating models.Rating) error {
	if !models.ValidRating(rating) {
		return fmt.Errorf("%w: rating %q", core.ErrValidation, rating)
	}
	const q = `
		UPDATE problems
		SET rating = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, string(rating))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *DatabaseClient) DeleteProblem(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *DatabaseClient) CountProblems(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM problems`).Scan(&n)
	return n, err
}

// Subject repair support

func (c *DatabaseClient) ListUnclassifiedProblems(ctx context.Context) ([]models.Problem, error) {
	q := `
		SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.subject IS NULL
		ORDER BY p.id ASC
	`
	return c.queryProblems(ctx, q)
}

func (c *DatabaseClient) SetProblemSubjectIfUnset(ctx context.Context, id int64, subject models.Subject) (bool, error) {
	if !models.ValidSubject(subject) {
		return false, fmt.Errorf("%w: subject %q", core.ErrValidation, subject)
	}
	const q = `
		UPDATE problems
		SET subject = $2, updated_at = now()
		WHERE id = $1 AND subject IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, string(subject))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *DatabaseClient) SetProblemStorageURL(ctx context.Context, id int64, url string) error {
	const q = `UPDATE problems SET storage_url = $2 WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id, url)
	return err
}

// Embedding / similarity support

func (c *DatabaseClient) ListUnembeddedProblemIDs(ctx context.Context, limit int) ([]int64, error) {
	const q = `
		SELECT id FROM problems
		WHERE embedding IS NULL
		ORDER BY id ASC
		LIMIT $1
	`
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) SetProblemEmbedding(ctx context.Context, id int64, embedding []float32) error {
	const q = `UPDATE problems SET embedding = $2 WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id, pgvector.NewVector(embedding))
	return err
}

// SearchSimilarProblems orders other embedded problems by vector distance to
// the given problem's embedding.
func (c *DatabaseClient) SearchSimilarProblems(ctx context.Context, id int64, limit int) ([]models.Problem, error) {
	q := `
		SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN users u ON u.id = p.user_id,
		(SELECT embedding FROM problems WHERE id = $1 AND embedding IS NOT NULL) ref
		WHERE p.id <> $1 AND p.embedding IS NOT NULL
		ORDER BY p.embedding <-> ref.embedding
		LIMIT $2
	`
	return c.queryProblems(ctx, q, id, limit)
}
