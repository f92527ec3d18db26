package models

import (
	"time"
)

// Subject is the closed set of academic topics a problem can be classified into.
type Subject string

const (
	SubjectMath            Subject = "math"
	SubjectPhysics         Subject = "physics"
	SubjectChemistry       Subject = "chemistry"
	SubjectBiology         Subject = "biology"
	SubjectEnglish         Subject = "english"
	SubjectHistory         Subject = "history"
	SubjectGeography       Subject = "geography"
	SubjectComputerScience Subject = "computer_science"
	SubjectOther           Subject = "other"
)

// SubjectFallback is stored whenever classification cannot resolve a member
// of the enumeration.
const SubjectFallback = SubjectOther

// AllSubjects lists every valid subject in prompt/display order.
var AllSubjects = []Subject{
	SubjectMath,
	SubjectPhysics,
	SubjectChemistry,
	SubjectBiology,
	SubjectEnglish,
	SubjectHistory,
	SubjectGeography,
	SubjectComputerScience,
	SubjectOther,
}

// ValidSubject reports whether s is a member of the enumeration.
func ValidSubject(s Subject) bool {
	for _, v := range AllSubjects {
		if s == v {
			return true
		}
	}
	return false
}

// Rating is a thumbs up/down verdict an owner gives their problem.
type Rating string

const (
	RatingThumbsUp   Rating = "thumbs_up"
	RatingThumbsDown Rating = "thumbs_down"
)

// ValidRating reports whether r is one of the two allowed values.
func ValidRating(r Rating) bool {
	return r == RatingThumbsUp || r == RatingThumbsDown
}

// User represents an authenticated user of the system. Users are upserted by
// their identity-provider id on each successful login.
type User struct {
	ID         int64     `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"-"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	AvatarURL  *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// OwnerInfo is the minimal display view of a problem's owner exposed on list
// and detail reads. Never the full user record.
type OwnerInfo struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	AvatarURL *string `db:"avatar_url" json:"avatar_url,omitempty"`
}

// Problem represents one analyzed practice problem: the uploaded image, the
// AI explanation, and the classification/rating metadata around it.
type Problem struct {
	ID         int64      `db:"id" json:"id"`
	UserID     *int64     `db:"user_id" json:"user_id,omitempty"` // nullable, legacy anonymous rows
	ImageData  string     `db:"image_data" json:"image_data"`     // base64
	MimeType   string     `db:"mime_type" json:"mime_type"`
	FileName   string     `db:"file_name" json:"file_name"`
	Question   *string    `db:"question" json:"question,omitempty"`
	Response   string     `db:"response" json:"response"`
	Subject    *Subject   `db:"subject" json:"subject,omitempty"`
	Rating     *Rating    `db:"rating" json:"rating,omitempty"`
	StorageURL *string    `db:"storage_url" json:"storage_url,omitempty"` // S3 archive, when enabled
	Owner      *OwnerInfo `db:"-" json:"owner,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
