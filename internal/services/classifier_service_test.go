package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/snapsolve/snapsolve/internal/models"
)

func unclassifiedProblem(t *testing.T, db *FakeDbClient, userID int64) *models.Problem {
	t.Helper()
	p := &models.Problem{
		UserID:    &userID,
		ImageData: base64.StdEncoding.EncodeToString([]byte("img")),
		MimeType:  "image/jpeg",
		Response:  "an explanation",
	}
	if err := db.CreateProblem(context.Background(), p); err != nil {
		t.Fatalf("seed problem: %v", err)
	}
	return p
}

func TestClassifyShouldAcceptExactEnumMember(t *testing.T) {
	svc := NewClassifierService(NewFakeDbClient(), NewFakeLLM("physics"))

	got := svc.Classify(context.Background(), []byte("img"), "image/jpeg", nil, "")
	if got != models.SubjectPhysics {
		t.Errorf("expected physics, got %s", got)
	}
}

func TestClassifyShouldTrimSurroundingWhitespace(t *testing.T) {
	svc := NewClassifierService(NewFakeDbClient(), NewFakeLLM("  math \n"))

	got := svc.Classify(context.Background(), []byte("img"), "image/jpeg", nil, "")
	if got != models.SubjectMath {
		t.Errorf("expected math, got %s", got)
	}
}

func TestClassifyShouldFallBackOnNonMemberAnswer(t *testing.T) {
	for _, answer := range []string{"astrology", "math and physics", "The subject is math.", "Math", "MATH", ""} {
		svc := NewClassifierService(NewFakeDbClient(), NewFakeLLM(answer))
		got := svc.Classify(context.Background(), []byte("img"), "image/jpeg", nil, "")
		if got != models.SubjectFallback {
			t.Errorf("answer %q: expected fallback, got %s", answer, got)
		}
	}
}

func TestClassifyShouldFallBackOnBackendError(t *testing.T) {
	llm := NewFakeLLM()
	llm.err = errors.New("quota exceeded")
	svc := NewClassifierService(NewFakeDbClient(), llm)

	got := svc.Classify(context.Background(), []byte("img"), "image/jpeg", nil, "")
	if got != models.SubjectFallback {
		t.Errorf("expected fallback on backend error, got %s", got)
	}
}

func TestClassifyPromptShouldCarryQuestionAndBoundedContext(t *testing.T) {
	llm := NewFakeLLM("math")
	svc := NewClassifierService(NewFakeDbClient(), llm)

	question := "what is x?"
	long := strings.Repeat("y", 2*maxContextChars)
	svc.Classify(context.Background(), []byte("img"), "image/jpeg", &question, long)

	prompt := llm.prompts[0]
	if !strings.Contains(prompt, question) {
		t.Error("prompt should include the student question")
	}
	if strings.Contains(prompt, long) {
		t.Error("prior response should be truncated in the prompt")
	}
	if !strings.Contains(prompt, string(models.SubjectComputerScience)) {
		t.Error("prompt should enumerate every subject label")
	}
}

func TestClassifyPromptShouldStayValidUTF8AtContextCap(t *testing.T) {
	llm := NewFakeLLM("math")
	svc := NewClassifierService(NewFakeDbClient(), llm)

	long := strings.Repeat("é", maxContextChars)
	svc.Classify(context.Background(), []byte("img"), "image/jpeg", nil, long)

	if !utf8.ValidString(llm.prompts[0]) {
		t.Error("truncated context must not split a rune")
	}
}

func TestRepairShouldClassifyOnlyUnclassifiedRows(t *testing.T) {
	db := NewFakeDbClient()
	a := unclassifiedProblem(t, db, 1)
	b := unclassifiedProblem(t, db, 1)

	classified := unclassifiedProblem(t, db, 1)
	if _, err := db.SetProblemSubjectIfUnset(context.Background(), classified.ID, models.SubjectBiology); err != nil {
		t.Fatalf("seed subject: %v", err)
	}

	llm := NewFakeLLM("math")
	svc := NewClassifierService(db, llm)

	res, err := svc.RepairUnclassified(context.Background())
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if res.Scanned != 2 || res.Classified != 2 || res.Failed != 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	for _, id := range []int64{a.ID, b.ID} {
		p, _ := db.GetProblemByID(context.Background(), id)
		if p.Subject == nil || *p.Subject != models.SubjectMath {
			t.Errorf("problem %d: expected math, got %v", id, p.Subject)
		}
	}
	p, _ := db.GetProblemByID(context.Background(), classified.ID)
	if *p.Subject != models.SubjectBiology {
		t.Error("already-classified row must never be revisited")
	}
}

func TestRepairShouldBeIdempotent(t *testing.T) {
	db := NewFakeDbClient()
	unclassifiedProblem(t, db, 1)
	unclassifiedProblem(t, db, 1)

	svc := NewClassifierService(db, NewFakeLLM("history"))

	first, err := svc.RepairUnclassified(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Classified != 2 {
		t.Fatalf("first run should classify 2, got %d", first.Classified)
	}

	second, err := svc.RepairUnclassified(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Scanned != 0 || second.Classified != 0 {
		t.Errorf("second run with no intervening writes should classify nothing: %+v", second)
	}
}

func TestRepairShouldLeaveErroredRowsEligible(t *testing.T) {
	db := NewFakeDbClient()
	p := unclassifiedProblem(t, db, 1)

	llm := NewFakeLLM()
	llm.err = errors.New("timeout")
	svc := NewClassifierService(db, llm)

	res, err := svc.RepairUnclassified(context.Background())
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if res.Failed != 1 || res.Classified != 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	got, _ := db.GetProblemByID(context.Background(), p.ID)
	if got.Subject != nil {
		t.Error("errored row must stay absent for the next run")
	}

	// next run with a healthy backend picks it up
	llm.err = nil
	llm.responses = []string{"chemistry"}
	res, _ = svc.RepairUnclassified(context.Background())
	if res.Classified != 1 {
		t.Errorf("recovered run should classify the row: %+v", res)
	}
}
