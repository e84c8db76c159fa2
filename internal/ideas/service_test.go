package ideas

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ideahub/server/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A single connection keeps the in-memory database alive and
	// serializes concurrent transactions the way a real deployment's
	// row locks would.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Idea{}, &models.Vote{}))
	return NewService(db), db
}

func validInput() SubmitInput {
	return SubmitInput{
		Title:    "A perfectly reasonable idea title",
		Summary:  strings.Repeat("A summary that is long enough to pass. ", 2),
		Details:  "Some optional details.",
		Category: "technology",
		IsNew:    true,
	}
}

func submitApproved(t *testing.T, svc *Service) *models.Idea {
	t.Helper()
	idea, err := svc.Submit(validInput())
	require.NoError(t, err)
	idea, err = svc.Approve(idea.ID)
	require.NoError(t, err)
	return idea
}

func TestSubmitValidatesFields(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*SubmitInput)
		field  string
	}{
		{"title too short", func(in *SubmitInput) { in.Title = strings.Repeat("x", 9) }, "title"},
		{"title too long", func(in *SubmitInput) { in.Title = strings.Repeat("x", 201) }, "title"},
		{"summary too short", func(in *SubmitInput) { in.Summary = strings.Repeat("x", 49) }, "summary"},
		{"summary too long", func(in *SubmitInput) { in.Summary = strings.Repeat("x", 501) }, "summary"},
		{"details too long", func(in *SubmitInput) { in.Details = strings.Repeat("x", 10001) }, "details"},
		{"bad category", func(in *SubmitInput) { in.Category = "memes" }, "category"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Submit(in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestSubmitBoundaryLengths(t *testing.T) {
	svc, _ := newTestService(t)

	in := validInput()
	in.Title = strings.Repeat("x", 10)
	in.Summary = strings.Repeat("x", 50)
	idea, err := svc.Submit(in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, idea.Status)
}

func TestSubmitPopulatesIdea(t *testing.T) {
	svc, _ := newTestService(t)

	idea, err := svc.Submit(validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, idea.ID)
	assert.Equal(t, models.StatusPending, idea.Status)
	assert.Zero(t, idea.Upvotes)
	assert.Zero(t, idea.Downvotes)
	assert.True(t, strings.HasPrefix(idea.Slug, "a-perfectly-reasonable-idea-title-"), "slug %q", idea.Slug)
	assert.Len(t, strings.Fields(idea.SubmittedBy), 2, "pseudonym should be adjective + animal")
}

func TestSubmitIdenticalTitlesGetDistinctSlugs(t *testing.T) {
	svc, _ := newTestService(t)

	a, err := svc.Submit(validInput())
	require.NoError(t, err)
	b, err := svc.Submit(validInput())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Slug, b.Slug)
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModerationStateMachine(t *testing.T) {
	svc, _ := newTestService(t)

	idea, err := svc.Submit(validInput())
	require.NoError(t, err)

	approved, err := svc.Approve(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	// Approving again is an idempotent no-op.
	again, err := svc.Approve(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, again.Status)

	// Crossing terminal states is a conflict.
	_, err = svc.Reject(idea.ID)
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = svc.Approve("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetStatus(idea.ID, "pending")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestRejectIsTerminalToo(t *testing.T) {
	svc, _ := newTestService(t)

	idea, err := svc.Submit(validInput())
	require.NoError(t, err)

	rejected, err := svc.Reject(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	_, err = svc.Reject(idea.ID)
	assert.NoError(t, err, "re-rejecting is idempotent")

	_, err = svc.Approve(idea.ID)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestCastVoteRequiresApprovedIdea(t *testing.T) {
	svc, db := newTestService(t)

	pending, err := svc.Submit(validInput())
	require.NoError(t, err)

	_, _, err = svc.CastVote(pending.ID, "fp-1", models.VoteUp)
	assert.ErrorIs(t, err, ErrNotApproved)

	rejected, err := svc.Submit(validInput())
	require.NoError(t, err)
	_, err = svc.Reject(rejected.ID)
	require.NoError(t, err)
	_, _, err = svc.CastVote(rejected.ID, "fp-1", models.VoteUp)
	assert.ErrorIs(t, err, ErrNotApproved)

	_, _, err = svc.CastVote("no-such-id", "fp-1", models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)

	// None of the failures may leave a vote or a counter behind.
	var votes int64
	require.NoError(t, db.Model(&models.Vote{}).Count(&votes).Error)
	assert.Zero(t, votes)
}

func TestCastVoteRejectsBadType(t *testing.T) {
	svc, _ := newTestService(t)
	idea := submitApproved(t, svc)

	_, _, err := svc.CastVote(idea.ID, "fp-1", "sideways")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "vote_type", verr.Field)
}

func TestCastVoteInsertIdempotenceAndFlip(t *testing.T) {
	svc, db := newTestService(t)
	idea := submitApproved(t, svc)

	up, down, err := svc.CastVote(idea.ID, "fp-1", models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 0}, [2]int{up, down})

	// Same vote again: counters untouched.
	up, down, err = svc.CastVote(idea.ID, "fp-1", models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 0}, [2]int{up, down})

	// Flip moves exactly one count across.
	up, down, err = svc.CastVote(idea.ID, "fp-1", models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, [2]int{0, 1}, [2]int{up, down})

	// Still a single ledger row for the pair.
	var votes int64
	require.NoError(t, db.Model(&models.Vote{}).Where("idea_id = ?", idea.ID).Count(&votes).Error)
	assert.EqualValues(t, 1, votes)

	assertCountersReconcile(t, db, idea.ID)
}

func TestCastVoteConcurrentVoters(t *testing.T) {
	svc, db := newTestService(t)
	idea := submitApproved(t, svc)

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters*3)

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fp := fmt.Sprintf("fp-%02d", n)

			// Every voter casts an upvote first; odd voters then flip
			// to a downvote, and every voter repeats their final vote
			// once to exercise idempotence under load.
			final := models.VoteUp
			if n%2 == 1 {
				final = models.VoteDown
			}
			if _, _, err := svc.CastVote(idea.ID, fp, models.VoteUp); err != nil {
				errs <- err
			}
			if _, _, err := svc.CastVote(idea.ID, fp, final); err != nil {
				errs <- err
			}
			if _, _, err := svc.CastVote(idea.ID, fp, final); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent cast failed: %v", err)
	}

	got, err := svc.Get(idea.ID)
	require.NoError(t, err)
	assert.Equal(t, voters/2, got.Upvotes, "even voters end on upvote")
	assert.Equal(t, voters/2, got.Downvotes, "odd voters end on downvote")

	var votes int64
	require.NoError(t, db.Model(&models.Vote{}).Where("idea_id = ?", idea.ID).Count(&votes).Error)
	assert.EqualValues(t, voters, votes, "one ledger row per fingerprint")

	assertCountersReconcile(t, db, idea.ID)
}

// assertCountersReconcile checks the core invariant: cached counters
// always equal the ledger counts.
func assertCountersReconcile(t *testing.T, db *gorm.DB, ideaID string) {
	t.Helper()
	var idea models.Idea
	require.NoError(t, db.First(&idea, "id = ?", ideaID).Error)

	var ups, downs int64
	require.NoError(t, db.Model(&models.Vote{}).
		Where("idea_id = ? AND vote_type = ?", ideaID, models.VoteUp).Count(&ups).Error)
	require.NoError(t, db.Model(&models.Vote{}).
		Where("idea_id = ? AND vote_type = ?", ideaID, models.VoteDown).Count(&downs).Error)

	assert.EqualValues(t, ups, idea.Upvotes)
	assert.EqualValues(t, downs, idea.Downvotes)
}

func TestListApprovedFiltersAndSorts(t *testing.T) {
	svc, db := newTestService(t)

	// Three approved ideas with fixed tallies and creation times, plus
	// one pending idea that must never appear.
	type seed struct {
		up, down int
		category string
		age      time.Duration
	}
	seeds := []seed{
		{up: 10, down: 8, category: "technology", age: 3 * time.Hour},
		{up: 5, down: 0, category: "industry", age: 2 * time.Hour},
		{up: 3, down: 3, category: "technology", age: 1 * time.Hour},
	}
	ids := make([]string, len(seeds))
	for i, s := range seeds {
		in := validInput()
		in.Title = fmt.Sprintf("Approved idea number %d for listing", i)
		in.Category = s.category
		idea, err := svc.Submit(in)
		require.NoError(t, err)
		_, err = svc.Approve(idea.ID)
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.Idea{}).Where("id = ?", idea.ID).
			Updates(map[string]interface{}{
				"upvotes":    s.up,
				"downvotes":  s.down,
				"created_at": time.Now().Add(-s.age),
			}).Error)
		ids[i] = idea.ID
	}
	pending, err := svc.Submit(validInput())
	require.NoError(t, err)

	recent, err := svc.ListApproved("", SortRecent, 1, 20)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{recent[0].ID, recent[1].ID, recent[2].ID})
	for _, idea := range recent {
		assert.NotEqual(t, pending.ID, idea.ID)
	}

	popular, err := svc.ListApproved("", SortPopular, 1, 20)
	require.NoError(t, err)
	require.Len(t, popular, 3)
	assert.Equal(t, ids[0], popular[0].ID)
	assert.Equal(t, ids[1], popular[1].ID)

	// Most contested first: margins 0, 2, 5.
	controversial, err := svc.ListApproved("", SortControversial, 1, 20)
	require.NoError(t, err)
	require.Len(t, controversial, 3)
	assert.Equal(t, []string{ids[2], ids[0], ids[1]},
		[]string{controversial[0].ID, controversial[1].ID, controversial[2].ID})

	tech, err := svc.ListApproved("technology", SortRecent, 1, 20)
	require.NoError(t, err)
	assert.Len(t, tech, 2)
}

func TestListApprovedValidation(t *testing.T) {
	svc, _ := newTestService(t)

	var verr *ValidationError
	_, err := svc.ListApproved("", "spiciest", 1, 20)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sort", verr.Field)

	_, err = svc.ListApproved("memes", SortRecent, 1, 20)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category", verr.Field)
}

func TestListApprovedPagination(t *testing.T) {
	svc, _ := newTestService(t)

	for i := 0; i < 4; i++ {
		in := validInput()
		in.Title = fmt.Sprintf("Paginated idea number %d right here", i)
		idea, err := svc.Submit(in)
		require.NoError(t, err)
		_, err = svc.Approve(idea.ID)
		require.NoError(t, err)
	}

	page1, err := svc.ListApproved("", SortRecent, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page2, err := svc.ListApproved("", SortRecent, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	// Past the end: empty, not an error.
	page3, err := svc.ListApproved("", SortRecent, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page3)

	page0, err := svc.ListApproved("", SortRecent, 0, 2)
	require.NoError(t, err)
	assert.Empty(t, page0)
}
