// Package ideas is the core of the server: idea submission, the
// moderation state machine, the approved-ideas listing, and the vote
// ledger with its atomic tally maintenance.
package ideas

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ideahub/server/internal/models"
	"github.com/ideahub/server/internal/names"
)

const (
	titleMin   = 10
	titleMax   = 200
	summaryMin = 50
	summaryMax = 500
	detailsMax = 10000

	defaultPerPage = 20
	maxPerPage     = 100

	// How many times a contended vote transaction is retried before
	// ErrStorageConflict is surfaced.
	castRetries = 3
)

// Sort orders accepted by ListApproved.
const (
	SortRecent        = "recent"
	SortPopular       = "popular"
	SortControversial = "controversial"
)

// Service owns all reads and writes of ideas and votes. It holds no
// state beyond the connection pool; every operation is safe for
// concurrent use.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SubmitInput is the already-shape-validated request body. The service
// re-checks the semantic constraints (lengths, enum membership).
type SubmitInput struct {
	Title    string
	Summary  string
	Details  string
	Category string
	IsNew    bool
}

func (in *SubmitInput) validate() error {
	if n := len(strings.TrimSpace(in.Title)); n < titleMin || n > titleMax {
		return validationErr("title", "must be 10-200 characters")
	}
	if n := len(strings.TrimSpace(in.Summary)); n < summaryMin || n > summaryMax {
		return validationErr("summary", "must be 50-500 characters")
	}
	if len(in.Details) > detailsMax {
		return validationErr("details", "must be at most 10000 characters")
	}
	if !models.ValidCategory(in.Category) {
		return validationErr("category", "must be one of: "+strings.Join(models.Categories, ", "))
	}
	return nil
}

// Submit validates the input and persists a new pending idea under a
// generated pseudonym. Identical titles get distinct slugs from the
// random suffix; a collision is retried once with a fresh suffix.
func (s *Service) Submit(in SubmitInput) (*models.Idea, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	idea := &models.Idea{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Summary:     strings.TrimSpace(in.Summary),
		Details:     in.Details,
		Category:    in.Category,
		IsNew:       in.IsNew,
		Status:      models.StatusPending,
		SubmittedBy: names.Generate(),
	}

	for attempt := 0; attempt < 2; attempt++ {
		idea.Slug = newSlug(idea.Title)
		err := s.db.Create(idea).Error
		if err == nil {
			return idea, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
	}
	return nil, ErrSlugConflict
}

// Get returns the idea with the given id.
func (s *Service) Get(id string) (*models.Idea, error) {
	var idea models.Idea
	if err := s.db.First(&idea, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &idea, nil
}

// Approve moves a pending idea to approved. Approving an idea that is
// already approved is a no-op; approving a rejected idea is
// ErrStateConflict.
func (s *Service) Approve(id string) (*models.Idea, error) {
	return s.SetStatus(id, models.StatusApproved)
}

// Reject is symmetric to Approve.
func (s *Service) Reject(id string) (*models.Idea, error) {
	return s.SetStatus(id, models.StatusRejected)
}

// SetStatus applies a moderation transition. Only "approved" and
// "rejected" are accepted; both are terminal, so the only legal move is
// out of pending. Re-applying the current terminal status is idempotent.
func (s *Service) SetStatus(id, status string) (*models.Idea, error) {
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, validationErr("status", "must be approved or rejected")
	}

	var idea models.Idea
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.lockRow(tx).First(&idea, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if idea.Status == status {
			return nil // idempotent re-moderation
		}
		if idea.Status != models.StatusPending {
			return ErrStateConflict
		}
		idea.Status = status
		return tx.Model(&idea).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &idea, nil
}

// CastVote records fingerprint's current vote on an approved idea and
// returns the post-update tallies.
//
// The whole decision runs in one transaction holding the idea row:
// no existing vote inserts a row and bumps one counter; a same-type
// re-vote changes nothing; a different type flips the row and moves one
// count across. The returned tallies come from the same transaction, so
// they always reconcile with the vote rows. Contention (row-lock
// conflicts on Postgres, busy database on SQLite) is retried with
// backoff before surfacing ErrStorageConflict.
func (s *Service) CastVote(ideaID, voterHash, voteType string) (up, down int, err error) {
	if voteType != models.VoteUp && voteType != models.VoteDown {
		return 0, 0, validationErr("vote_type", "must be upvote or downvote")
	}

	for attempt := 0; ; attempt++ {
		up, down, err = s.castVoteOnce(ideaID, voterHash, voteType)
		if err == nil || !isRetryable(err) {
			return up, down, err
		}
		if attempt >= castRetries {
			return 0, 0, ErrStorageConflict
		}
		time.Sleep(time.Duration(25*(1<<attempt)) * time.Millisecond)
	}
}

func (s *Service) castVoteOnce(ideaID, voterHash, voteType string) (up, down int, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var idea models.Idea
		if err := s.lockRow(tx).First(&idea, "id = ?", ideaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if idea.Status != models.StatusApproved {
			return ErrNotApproved
		}

		newUp, newDown := idea.Upvotes, idea.Downvotes

		var vote models.Vote
		err := tx.Where("idea_id = ? AND voter_hash = ?", ideaID, voterHash).First(&vote).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First vote from this fingerprint.
			vote = models.Vote{IdeaID: ideaID, VoterHash: voterHash, VoteType: voteType}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			if voteType == models.VoteUp {
				newUp++
			} else {
				newDown++
			}
		case err != nil:
			return err
		case vote.VoteType == voteType:
			// Idempotent re-vote, nothing to do.
		default:
			// Flip: move one count from the old side to the new.
			if err := tx.Model(&vote).Update("vote_type", voteType).Error; err != nil {
				return err
			}
			if voteType == models.VoteUp {
				newUp++
				newDown--
			} else {
				newUp--
				newDown++
			}
		}

		if newUp != idea.Upvotes || newDown != idea.Downvotes {
			err := tx.Model(&idea).
				Updates(map[string]interface{}{"upvotes": newUp, "downvotes": newDown}).Error
			if err != nil {
				return err
			}
		}
		up, down = newUp, newDown
		return nil
	})
	return up, down, err
}

// ListApproved returns approved ideas, optionally filtered by category,
// in the requested order. Pages are 1-indexed; pages past the end (or
// below 1) are empty, never an error. Unknown sort keys and categories
// are validation errors rather than silent defaults.
func (s *Service) ListApproved(category, sort string, page, perPage int) ([]models.Idea, error) {
	if sort == "" {
		sort = SortRecent
	}
	if category != "" && !models.ValidCategory(category) {
		return nil, validationErr("category", "must be one of: "+strings.Join(models.Categories, ", "))
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}
	if page < 1 {
		return []models.Idea{}, nil
	}

	query := s.db.Where("status = ?", models.StatusApproved)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	switch sort {
	case SortRecent:
		query = query.Order("created_at DESC")
	case SortPopular:
		query = query.Order("upvotes DESC")
	case SortControversial:
		// Smallest margin first: the most contested ideas lead.
		query = query.Order("(upvotes - downvotes) ASC")
	default:
		return nil, validationErr("sort", "must be recent, popular or controversial")
	}

	ideas := []models.Idea{}
	err := query.Offset((page - 1) * perPage).Limit(perPage).Find(&ideas).Error
	if err != nil {
		return nil, err
	}
	return ideas, nil
}

// lockRow adds FOR UPDATE on dialects that support row locks. SQLite
// has no row locking; there the transaction itself serializes writers
// and contention shows up as a busy error, which CastVote retries.
func (s *Service) lockRow(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"database is locked",
		"database table is locked",
		"SQLITE_BUSY",
		"deadlock detected",
		"could not serialize access",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
