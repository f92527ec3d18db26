package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
)

// maxContextChars bounds how much of the prior explanation is fed back into
// the classification prompt.
const maxContextChars = 500

// ClassifierService resolves a problem image to a member of the subject
// enumeration via a single AI call. It never fails the enclosing operation:
// anything the backend returns that is not an exact member, and any backend
// error, degrades to the fallback subject.
type ClassifierService struct {
	db  core.DbClient
	llm core.LLMProvider
}

func NewClassifierService(db core.DbClient, llm core.LLMProvider) *ClassifierService {
	return &ClassifierService{db: db, llm: llm}
}

// Classify returns the subject for an image, falling back to
// models.SubjectFallback on any backend error or out-of-enum answer.
func (s *ClassifierService) Classify(ctx context.Context, image []byte, mimeType string, question *string, priorResponse string) models.Subject {
	subject, err := s.classify(ctx, image, mimeType, question, priorResponse)
	if err != nil {
		log.Printf("subject classification failed, using fallback: %v", err)
		return models.SubjectFallback
	}
	return subject
}

// classify surfaces backend errors to the caller. The trimmed answer must be
// an exact member of the enumeration; anything else (including a case
// variant) resolves to the fallback subject without error.
func (s *ClassifierService) classify(ctx context.Context, image []byte, mimeType string, question *string, priorResponse string) (models.Subject, error) {
	prompt := buildClassifyPrompt(question, priorResponse)

	raw, err := s.llm.Generate(ctx, "", prompt, image, mimeType)
	if err != nil {
		return models.SubjectFallback, err
	}

	subject := models.Subject(strings.TrimSpace(raw))
	if !models.ValidSubject(subject) {
		return models.SubjectFallback, nil
	}
	return subject, nil
}

func buildClassifyPrompt(question *string, priorResponse string) string {
	labels := make([]string, 0, len(models.AllSubjects))
	for _, s := range models.AllSubjects {
		labels = append(labels, string(s))
	}

	var b strings.Builder
	b.WriteString("Classify the school subject of the problem in this image.\n")
	b.WriteString("Answer with exactly one of the following labels and nothing else:\n")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\n")
	if question != nil && *question != "" {
		fmt.Fprintf(&b, "\nThe student asked: %s\n", *question)
	}
	if priorResponse != "" {
		fmt.Fprintf(&b, "\nAn earlier explanation of the problem began: %s\n", truncate(priorResponse, maxContextChars))
	}
	return b.String()
}

// RepairResult summarizes one batch-repair run.
type RepairResult struct {
	Scanned    int `json:"scanned"`
	Classified int `json:"classified"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// RepairUnclassified classifies every problem whose subject is still absent,
// strictly one at a time to bound load on the AI backend. Idempotent: rows
// that already carry a subject are never revisited, and the write is guarded
// so a concurrent classification of the same row wins only once. Rows whose
// classification errors stay absent and are picked up by the next run.
func (s *ClassifierService) RepairUnclassified(ctx context.Context) (RepairResult, error) {
	problems, err := s.db.ListUnclassifiedProblems(ctx)
	if err != nil {
		return RepairResult{}, fmt.Errorf("list unclassified: %w", err)
	}

	res := RepairResult{Scanned: len(problems)}
	for i := range problems {
		p := &problems[i]

		image, err := base64.StdEncoding.DecodeString(p.ImageData)
		if err != nil {
			log.Printf("repair: problem %d has undecodable image data: %v", p.ID, err)
			res.Failed++
			continue
		}

		subject, err := s.classify(ctx, image, p.MimeType, p.Question, p.Response)
		if err != nil {
			// leave the row absent; the next run retries it
			log.Printf("repair: problem %d classification failed: %v", p.ID, err)
			res.Failed++
			continue
		}

		updated, err := s.db.SetProblemSubjectIfUnset(ctx, p.ID, subject)
		if err != nil {
			log.Printf("repair: problem %d subject write failed: %v", p.ID, err)
			res.Failed++
			continue
		}
		if !updated {
			// someone classified it while we were working
			res.Skipped++
			continue
		}
		res.Classified++
	}
	return res, nil
}
