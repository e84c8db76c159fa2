package models

import (
	"time"
)

// Idea statuses. An idea starts out pending and is moved to exactly one
// of the terminal states by a moderator.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Vote types.
const (
	VoteUp   = "upvote"
	VoteDown = "downvote"
)

// Categories an idea can be filed under.
var Categories = []string{"industry", "technology", "problem_area"}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Idea is a single anonymous submission.
//
// Upvotes and Downvotes are cached tallies of the Vote rows referencing
// this idea. They are only ever mutated inside the same transaction that
// writes the Vote row, so the counters and the ledger cannot diverge.
type Idea struct {
	ID          string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Summary     string    `gorm:"not null" json:"summary"`
	Details     string    `json:"details,omitempty"`
	Category    string    `gorm:"not null;index" json:"category"`
	IsNew       bool      `gorm:"not null;default:false" json:"is_new"`
	Status      string    `gorm:"not null;default:pending;index" json:"status"`
	SubmittedBy string    `gorm:"not null" json:"submitted_by"`
	Upvotes     int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes   int       `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Votes       []Vote    `gorm:"foreignKey:IdeaID;constraint:OnDelete:CASCADE" json:"-"`
}

// Vote records the current vote of one fingerprint on one idea. The
// unique index on (idea_id, voter_hash) is what enforces at most one
// effective vote per identity per idea; a changed mind flips VoteType
// in place instead of adding a second row.
type Vote struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	IdeaID    string    `gorm:"not null;uniqueIndex:idx_idea_voter;type:varchar(36)" json:"idea_id"`
	VoterHash string    `gorm:"not null;uniqueIndex:idx_idea_voter;type:varchar(64)" json:"-"`
	VoteType  string    `gorm:"not null" json:"vote_type"`
	CreatedAt time.Time `json:"created_at"`
}
