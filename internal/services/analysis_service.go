package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
)

const maxQuestionChars = 500

const tutorSystemPrompt = "You are a patient tutor. Explain how to solve the problem in the image " +
	"step by step, teaching the method rather than just stating the answer. " +
	"Use short numbered steps and plain language a student can follow."

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// truncate caps s at max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// sanitizeQuestion strips markup from free text and caps its length.
func sanitizeQuestion(q string) string {
	q = tagPattern.ReplaceAllString(q, "")
	q = strings.TrimSpace(q)
	return truncate(q, maxQuestionChars)
}

// AnalyzeResult is what the client gets back from one analysis.
type AnalyzeResult struct {
	ProblemID int64          `json:"problem_id"`
	Response  string         `json:"response"`
	Question  *string        `json:"question,omitempty"`
	Subject   models.Subject `json:"subject"`
}

// AnalysisService composes the single most involved operation: validate the
// upload, generate the tutoring explanation, classify the subject, persist,
// and run the best-effort extras (S3 archival, embedding).
type AnalysisService struct {
	problems   *ProblemService
	classifier *ClassifierService
	embeddings *EmbeddingService
	llm        core.LLMProvider
	storage    core.ObjectClient // nil when archival is not configured
	bucket     string
	db         core.DbClient
	maxBytes   int64
}

func NewAnalysisService(
	db core.DbClient,
	problems *ProblemService,
	classifier *ClassifierService,
	embeddings *EmbeddingService,
	llm core.LLMProvider,
	storage core.ObjectClient,
	bucket string,
	maxBytes int64,
) *AnalysisService {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &AnalysisService{
		problems:   problems,
		classifier: classifier,
		embeddings: embeddings,
		llm:        llm,
		storage:    storage,
		bucket:     bucket,
		db:         db,
		maxBytes:   maxBytes,
	}
}

// Analyze runs the full pipeline for an authenticated user. An AI failure on
// the explanation aborts the whole operation with nothing persisted; a
// classification failure degrades to the fallback subject and never aborts.
func (s *AnalysisService) Analyze(ctx context.Context, userID int64, image []byte, mimeType, fileName, question string) (*AnalyzeResult, error) {
	// Reject before any AI call is made.
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", core.ErrValidation)
	}
	if int64(len(image)) > s.maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", core.ErrValidation, s.maxBytes)
	}
	if !allowedMimeTypes[mimeType] {
		return nil, fmt.Errorf("%w: unsupported image type %q", core.ErrValidation, mimeType)
	}

	question = sanitizeQuestion(question)

	userPrompt := "Explain how to solve this problem."
	if question != "" {
		userPrompt = question
	}

	response, err := s.llm.Generate(ctx, tutorSystemPrompt, userPrompt, image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: explanation generation: %v", core.ErrUpstream, err)
	}
	if strings.TrimSpace(response) == "" {
		return nil, fmt.Errorf("%w: empty explanation from AI backend", core.ErrUpstream)
	}

	var questionPtr *string
	if question != "" {
		questionPtr = &question
	}

	subject := s.classifier.Classify(ctx, image, mimeType, questionPtr, response)

	p := &models.Problem{
		UserID:    &userID,
		ImageData: base64.StdEncoding.EncodeToString(image),
		MimeType:  mimeType,
		FileName:  path.Base(fileName),
		Question:  questionPtr,
		Response:  response,
		Subject:   &subject,
	}
	if err := s.problems.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: persist problem: %v", core.ErrUpstream, err)
	}

	// Post-persist extras never fail the request.
	s.archive(ctx, p, image)
	if s.embeddings != nil {
		if err := s.embeddings.EmbedProblem(ctx, p.ID, questionPtr, response); err != nil {
			log.Printf("embedding for problem %d failed: %v", p.ID, err)
		}
	}

	return &AnalyzeResult{
		ProblemID: p.ID,
		Response:  response,
		Question:  questionPtr,
		Subject:   subject,
	}, nil
}

// Delete removes a problem the requester owns, including its archived
// original when one exists. The S3 cleanup is best-effort, like the upload.
func (s *AnalysisService) Delete(ctx context.Context, id int64, requesterID int64) error {
	p, err := s.problems.Delete(ctx, id, requesterID)
	if err != nil {
		return err
	}

	if s.storage != nil && p.StorageURL != nil {
		if key := objectKeyFromURL(*p.StorageURL); key != "" {
			if err := s.storage.DeleteFile(ctx, s.bucket, key); err != nil {
				log.Printf("archived upload for problem %d not removed: %v", id, err)
			}
		}
	}
	return nil
}

// objectKeyFromURL recovers the object key from the stored archive URL.
func objectKeyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// archive keeps a copy of the original upload in object storage when
// configured. Failures are logged and never surfaced.
func (s *AnalysisService) archive(ctx context.Context, p *models.Problem, image []byte) {
	if s.storage == nil || p.UserID == nil {
		return
	}
	key := path.Join("users", fmt.Sprint(*p.UserID), "problems", uuid.NewString(), p.FileName)
	url, err := s.storage.UploadFile(ctx, s.bucket, key, image, p.MimeType)
	if err != nil {
		log.Printf("archive for problem %d failed: %v", p.ID, err)
		return
	}
	if err := s.db.SetProblemStorageURL(ctx, p.ID, url); err != nil {
		log.Printf("storage url for problem %d not recorded: %v", p.ID, err)
	}
}
