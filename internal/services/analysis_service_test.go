package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/core/cache"
	"github.com/snapsolve/snapsolve/internal/models"
)

type analysisFixture struct {
	db       *FakeDbClient
	llm      *FakeLLM
	storage  *FakeObjectClient
	problems *ProblemService
	svc      *AnalysisService
}

func newAnalysisFixture(llm *FakeLLM) *analysisFixture {
	db := NewFakeDbClient()
	c := cache.New(cache.Config{TTL: time.Minute})
	problems := NewProblemService(db, c)
	classifier := NewClassifierService(db, llm)
	embeddings := NewEmbeddingService(db, &FakeEmbedder{})
	storage := NewFakeObjectClient()
	svc := NewAnalysisService(db, problems, classifier, embeddings, llm, storage, "snapsolve-test", 1<<20)
	return &analysisFixture{db: db, llm: llm, storage: storage, problems: problems, svc: svc}
}

func TestAnalyzeShouldPersistAndReturnFullResult(t *testing.T) {
	// first response answers the tutoring call, second the classification
	f := newAnalysisFixture(NewFakeLLM("Step 1: isolate x.", "math"))

	res, err := f.svc.Analyze(context.Background(), 1, []byte("jpegbytes"), "image/jpeg", "algebra.jpg", "solve for x")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if res.ProblemID <= 0 {
		t.Error("expected an assigned integer id")
	}
	if res.Response != "Step 1: isolate x." {
		t.Errorf("unexpected response: %q", res.Response)
	}
	if res.Subject != models.SubjectMath {
		t.Errorf("expected subject math, got %s", res.Subject)
	}
	if res.Question == nil || *res.Question != "solve for x" {
		t.Errorf("expected echoed question, got %v", res.Question)
	}

	p, err := f.db.GetProblemByID(context.Background(), res.ProblemID)
	if err != nil {
		t.Fatalf("persisted record missing: %v", err)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(p.ImageData); string(decoded) != "jpegbytes" {
		t.Error("image should be persisted as base64")
	}
	if p.Subject == nil || *p.Subject != models.SubjectMath {
		t.Error("subject should be stored at creation time")
	}
	if p.StorageURL == nil {
		t.Error("archival should record the storage url")
	}
}

func TestAnalyzeShouldRejectOversizeBeforeAnyAICall(t *testing.T) {
	llm := NewFakeLLM("unused")
	f := newAnalysisFixture(llm)

	big := make([]byte, 8<<20)
	_, err := f.svc.Analyze(context.Background(), 1, big, "image/jpeg", "big.jpg", "")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if llm.Calls() != 0 {
		t.Error("oversize upload must be rejected before the AI backend is called")
	}
	if n, _ := f.db.CountProblems(context.Background()); n != 0 {
		t.Error("nothing may be persisted on rejection")
	}
}

func TestAnalyzeShouldRejectDisallowedMimeType(t *testing.T) {
	llm := NewFakeLLM("unused")
	f := newAnalysisFixture(llm)

	_, err := f.svc.Analyze(context.Background(), 1, []byte("hello"), "text/plain", "notes.txt", "")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if llm.Calls() != 0 {
		t.Error("bad mime type must be rejected before the AI backend is called")
	}
}

func TestAnalyzeShouldAbortWholeOperationOnExplanationFailure(t *testing.T) {
	llm := NewFakeLLM()
	llm.err = errors.New("backend down")
	f := newAnalysisFixture(llm)

	_, err := f.svc.Analyze(context.Background(), 1, []byte("img"), "image/png", "p.png", "")
	if !errors.Is(err, core.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if n, _ := f.db.CountProblems(context.Background()); n != 0 {
		t.Error("no partial record may be persisted when explanation fails")
	}
}

func TestAnalyzeShouldDegradeToFallbackWhenClassificationMisbehaves(t *testing.T) {
	// tutoring call succeeds, classification answers garbage
	f := newAnalysisFixture(NewFakeLLM("Here is how.", "I think it's probably maths?"))

	res, err := f.svc.Analyze(context.Background(), 1, []byte("img"), "image/webp", "p.webp", "")
	if err != nil {
		t.Fatalf("classification trouble must never fail analyze: %v", err)
	}
	if res.Subject != models.SubjectFallback {
		t.Errorf("expected fallback subject, got %s", res.Subject)
	}
}

func TestAnalyzeShouldSanitizeQuestion(t *testing.T) {
	f := newAnalysisFixture(NewFakeLLM("ok", "math"))

	raw := "<script>alert(1)</script>what is <b>x</b>?  "
	res, err := f.svc.Analyze(context.Background(), 1, []byte("img"), "image/jpeg", "q.jpg", raw)
	if err != nil {
		t.Fatal(err)
	}
	if res.Question == nil || *res.Question != "alert(1)what is x?" {
		t.Errorf("unexpected sanitized question: %v", res.Question)
	}
}

func TestAnalyzeShouldCapQuestionLength(t *testing.T) {
	f := newAnalysisFixture(NewFakeLLM("ok", "math"))

	long := strings.Repeat("q", 2*maxQuestionChars)
	res, err := f.svc.Analyze(context.Background(), 1, []byte("img"), "image/jpeg", "q.jpg", long)
	if err != nil {
		t.Fatal(err)
	}
	if res.Question == nil || len(*res.Question) != maxQuestionChars {
		t.Errorf("question should be capped at %d chars", maxQuestionChars)
	}
}

func TestAnalyzeShouldCapQuestionAtRuneBoundary(t *testing.T) {
	f := newAnalysisFixture(NewFakeLLM("ok", "math"))

	// two-byte runes placed so the byte cap lands mid-rune
	long := strings.Repeat("é", maxQuestionChars)
	res, err := f.svc.Analyze(context.Background(), 1, []byte("img"), "image/jpeg", "q.jpg", long)
	if err != nil {
		t.Fatal(err)
	}
	if res.Question == nil || !utf8.ValidString(*res.Question) {
		t.Error("capped question must remain valid UTF-8")
	}
	if len(*res.Question) > maxQuestionChars {
		t.Errorf("question exceeds the byte cap: %d", len(*res.Question))
	}
}

func TestAnalyzeShouldSurviveArchiveFailure(t *testing.T) {
	f := newAnalysisFixture(NewFakeLLM("ok", "math"))
	f.storage.err = errors.New("bucket gone")

	res, err := f.svc.Analyze(context.Background(), 1, []byte("img"), "image/jpeg", "p.jpg", "")
	if err != nil {
		t.Fatalf("archive failure must never surface: %v", err)
	}
	p, _ := f.db.GetProblemByID(context.Background(), res.ProblemID)
	if p.StorageURL != nil {
		t.Error("failed archive must not record a storage url")
	}
}

func TestDeleteShouldRemoveArchivedObject(t *testing.T) {
	f := newAnalysisFixture(NewFakeLLM("ok", "math"))
	ctx := context.Background()

	res, err := f.svc.Analyze(ctx, 1, []byte("img"), "image/jpeg", "p.jpg", "")
	if err != nil {
		t.Fatal(err)
	}
	if f.storage.Count() != 1 {
		t.Fatalf("expected 1 archived object, got %d", f.storage.Count())
	}

	if err := f.svc.Delete(ctx, res.ProblemID, 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if f.storage.Count() != 0 {
		t.Error("archived object should be removed with its problem")
	}
	if _, err := f.db.GetProblemByID(ctx, res.ProblemID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAnalyzeThenListMineShouldShowNewRecordFirst(t *testing.T) {
	f := newAnalysisFixture(NewFakeLLM("first", "math", "second", "physics"))
	ctx := context.Background()
	userID := int64(5)

	if _, err := f.svc.Analyze(ctx, userID, []byte("one"), "image/jpeg", "1.jpg", ""); err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Analyze(ctx, userID, []byte("two"), "image/jpeg", "2.jpg", "")
	if err != nil {
		t.Fatal(err)
	}

	mine, err := f.problems.List(ctx, &userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].ID != second.ProblemID {
		t.Errorf("newest record should appear first in mine, got %+v", mine)
	}
}
