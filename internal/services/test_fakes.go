package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
)

// FakeDbClient is a test-only fake implementing core.DbClient. It stores
// records in maps and exposes error fields for behavior injection.
type FakeDbClient struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	problems   map[int64]*models.Problem
	embeddings map[int64][]float32
	nextUserID int64
	nextProbID int64

	createErr error
	getErr    error
	listErr   error
	updateErr error

	listCalls int
}

func NewFakeDbClient() *FakeDbClient {
	return &FakeDbClient{
		users:      make(map[int64]*models.User),
		problems:   make(map[int64]*models.Problem),
		embeddings: make(map[int64][]float32),
	}
}

func (f *FakeDbClient) UpsertUserByExternalID(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ExternalID == user.ExternalID {
			u.Email = user.Email
			u.Name = user.Name
			u.AvatarURL = user.AvatarURL
			u.UpdatedAt = time.Now()
			cp := *u
			return &cp, nil
		}
	}
	f.nextUserID++
	u := &models.User{
		ID:         f.nextUserID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Name:       user.Name,
		AvatarURL:  user.AvatarURL,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *FakeDbClient) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *FakeDbClient) CreateProblem(ctx context.Context, p *models.Problem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextProbID++
	p.ID = f.nextProbID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.problems[p.ID] = &cp
	return nil
}

func (f *FakeDbClient) GetProblemByID(ctx context.Context, id int64) (*models.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.problems[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakeDbClient) listLocked(filter func(*models.Problem) bool) []models.Problem {
	out := make([]models.Problem, 0, len(f.problems))
	for _, p := range f.problems {
		if filter(p) {
			out = append(out, *p)
		}
	}
	// newest first, same as the real query
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (f *FakeDbClient) ListProblems(ctx context.Context) ([]models.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listCalls++
	return f.listLocked(func(*models.Problem) bool { return true }), nil
}

func (f *FakeDbClient) ListProblemsByUser(ctx context.Context, userID int64) ([]models.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listCalls++
	return f.listLocked(func(p *models.Problem) bool {
		return p.UserID != nil && *p.UserID == userID
	}), nil
}

func (f *FakeDbClient) UpdateProblemRating(ctx context.Context, id int64, rating models.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	p, ok := f.problems[id]
	if !ok {
		return core.ErrNotFound
	}
	r := rating
	p.Rating = &r
	p.UpdatedAt = time.Now()
	return nil
}

func (f *FakeDbClient) DeleteProblem(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.problems[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.problems, id)
	delete(f.embeddings, id)
	return nil
}

func (f *FakeDbClient) CountProblems(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.problems)), nil
}

func (f *FakeDbClient) ListUnclassifiedProblems(ctx context.Context) ([]models.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.listLocked(func(p *models.Problem) bool { return p.Subject == nil })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeDbClient) SetProblemSubjectIfUnset(ctx context.Context, id int64, subject models.Subject) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return false, f.updateErr
	}
	p, ok := f.problems[id]
	if !ok || p.Subject != nil {
		return false, nil
	}
	s := subject
	p.Subject = &s
	p.UpdatedAt = time.Now()
	return true, nil
}

func (f *FakeDbClient) SetProblemStorageURL(ctx context.Context, id int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.problems[id]; ok {
		u := url
		p.StorageURL = &u
	}
	return nil
}

func (f *FakeDbClient) ListUnembeddedProblemIDs(ctx context.Context, limit int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for id := range f.problems {
		if _, ok := f.embeddings[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeDbClient) SetProblemEmbedding(ctx context.Context, id int64, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeddings[id] = embedding
	return nil
}

func (f *FakeDbClient) SearchSimilarProblems(ctx context.Context, id int64, limit int) ([]models.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.listLocked(func(p *models.Problem) bool {
		_, embedded := f.embeddings[p.ID]
		return p.ID != id && embedded
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeDbClient) Close() error { return nil }

var _ core.DbClient = (*FakeDbClient)(nil)

// FakeLLM is a scripted core.LLMProvider. Responses are popped in order; once
// exhausted, the last one repeats. A non-nil err fails every call.
type FakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func NewFakeLLM(responses ...string) *FakeLLM {
	return &FakeLLM{responses: responses}
}

func (f *FakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string, image []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *FakeLLM) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ core.LLMProvider = (*FakeLLM)(nil)

// FakeEmbedder returns a fixed-size vector per text.
type FakeEmbedder struct {
	err error
}

func (f *FakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0.5, 0.25}
	}
	return out, nil
}

var _ core.EmbeddingProvider = (*FakeEmbedder)(nil)

// FakeObjectClient records uploads in memory.
type FakeObjectClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func NewFakeObjectClient() *FakeObjectClient {
	return &FakeObjectClient{objects: make(map[string][]byte)}
}

func (f *FakeObjectClient) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.objects[bucket+"/"+key] = data
	return "https://" + bucket + ".example.com/" + key, nil
}

func (f *FakeObjectClient) DeleteFile(ctx context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *FakeObjectClient) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

var _ core.ObjectClient = (*FakeObjectClient)(nil)
