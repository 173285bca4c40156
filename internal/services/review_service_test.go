package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/pkg/apperrors"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

const cleanComment = "A careful, well paced story with characters that earn every turn of the plot."

// fakeReviewRepo is an in-memory ReviewRepository honoring the
// optimistic-versioning contract of TransitionState.
type fakeReviewRepo struct {
	mu      sync.Mutex
	nextID  uint
	reviews map[uint]*models.Review

	// when >0, TransitionState reports a lost race this many times
	forcedConflicts int
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{nextID: 1, reviews: make(map[uint]*models.Review)}
}

func (f *fakeReviewRepo) CreateReview(review *models.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	review.ID = f.nextID
	f.nextID++
	stored := *review
	f.reviews[review.ID] = &stored
	return nil
}

func (f *fakeReviewRepo) GetReviewByID(id uint) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	review, ok := f.reviews[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *review
	return &copied, nil
}

func (f *fakeReviewRepo) GetVisibleByBookID(bookID string, sortOrder repositories.ReviewSort, page, limit int) ([]models.Review, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Review
	for _, review := range f.reviews {
		if review.BookID == bookID && review.ParentReviewID == nil && review.State == models.ReviewStateApproved {
			out = append(out, *review)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if sortOrder == repositories.ReviewSortOldest {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, int64(len(out)), nil
}

func (f *fakeReviewRepo) GetRepliesByParentID(parentID uint) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Review
	for _, review := range f.reviews {
		if review.ParentReviewID != nil && *review.ParentReviewID == parentID && review.State == models.ReviewStateApproved {
			out = append(out, *review)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeReviewRepo) TransitionState(id uint, expectedVersion uint, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forcedConflicts > 0 {
		f.forcedConflicts--
		return false, nil
	}

	review, ok := f.reviews[id]
	if !ok || review.Version != expectedVersion {
		return false, nil
	}
	if state, ok := updates["state"]; ok {
		review.State = state.(models.ReviewState)
	}
	if v, ok := updates["auto_moderated"]; ok {
		review.AutoModerated = v.(bool)
	}
	if v, ok := updates["auto_rejected"]; ok {
		review.AutoRejected = v.(bool)
	}
	review.Version = expectedVersion + 1
	return true, nil
}

func (f *fakeReviewRepo) CountRecentByAuthor(authorID uint, limit int) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, rejected := 0, 0
	for _, review := range f.reviews {
		if review.AuthorID != authorID {
			continue
		}
		total++
		if review.State == models.ReviewStateAutoRejected {
			rejected++
		}
	}
	if total > limit {
		total = limit
	}
	return total, rejected, nil
}

func (f *fakeReviewRepo) GetTopRatedByAuthors(authorIDs []uint, minRating, limit int) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make(map[uint]bool, len(authorIDs))
	for _, id := range authorIDs {
		members[id] = true
	}
	var out []models.Review
	for _, review := range f.reviews {
		if members[review.AuthorID] && review.ParentReviewID == nil &&
			review.State == models.ReviewStateApproved && review.Rating >= minRating {
			out = append(out, *review)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReviewRepo) GetBookIDsReviewedBy(authorID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, review := range f.reviews {
		if review.AuthorID == authorID && review.State != models.ReviewStateDeleted && !seen[review.BookID] {
			seen[review.BookID] = true
			out = append(out, review.BookID)
		}
	}
	return out, nil
}

// recorderSpy counts RecordReviewApproved invocations per review
type recorderSpy struct {
	mu       sync.Mutex
	recorded map[uint]int
}

func newRecorderSpy() *recorderSpy {
	return &recorderSpy{recorded: make(map[uint]int)}
}

func (r *recorderSpy) RecordReviewApproved(_ context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded[review.ID]++
	return nil
}

func (r *recorderSpy) RecordFollow(context.Context, uint, uint) error     { return nil }
func (r *recorderSpy) RecordFavorite(context.Context, uint, string) error { return nil }
func (r *recorderSpy) RecordReaction(context.Context, uint, uint) error   { return nil }

func (r *recorderSpy) GetFeed(context.Context, uint, string, int) ([]models.Activity, string, error) {
	return nil, "", nil
}

// notifierSpy records which events fired
type notifierSpy struct {
	mu           sync.Mutex
	replies      []uint // reply review IDs
	fanouts      []uint // approved review IDs
	replyParents []uint
}

func (n *notifierSpy) NotifyReply(_ context.Context, reply *models.Review, parentAuthorID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies = append(n.replies, reply.ID)
	n.replyParents = append(n.replyParents, parentAuthorID)
	return nil
}

func (n *notifierSpy) NotifyReaction(context.Context, uint, *models.Review) error { return nil }
func (n *notifierSpy) NotifyNewFollower(context.Context, uint, uint) error        { return nil }
func (n *notifierSpy) NotifyFavorite(context.Context, uint, string, uint) error   { return nil }

func (n *notifierSpy) FanoutReviewApproved(review *models.Review) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fanouts = append(n.fanouts, review.ID)
}

type invalidatorSpy struct {
	mu    sync.Mutex
	users []uint
}

func (i *invalidatorSpy) Invalidate(_ context.Context, userID uint) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users = append(i.users, userID)
	return nil
}

func newReviewServiceForTest(repo *fakeReviewRepo) (ReviewService, *recorderSpy, *notifierSpy, *invalidatorSpy) {
	recorder := newRecorderSpy()
	notifier := &notifierSpy{}
	invalidator := &invalidatorSpy{}
	svc := NewReviewService(repo, recorder, notifier, invalidator, logger.NewNop())
	return svc, recorder, notifier, invalidator
}

func TestSubmitReviewRejectsRatingOutOfRange(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)

	for _, rating := range []int{0, -1, 6, 100} {
		_, err := svc.SubmitReview(context.Background(), 1, "book-1", models.CreateReviewRequest{
			Rating: rating,
			Text:   cleanComment,
		})
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	}

	// No row was created for any of the failed submissions
	assert.Empty(t, repo.reviews)
}

func TestSubmitReviewApprovesCleanText(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, recorder, notifier, invalidator := newReviewServiceForTest(repo)

	review, err := svc.SubmitReview(context.Background(), 7, "book-1", models.CreateReviewRequest{
		Rating: 4,
		Text:   cleanComment,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReviewStateApproved, review.State)
	assert.True(t, review.AutoModerated)
	assert.Equal(t, 1, recorder.recorded[review.ID])
	assert.Equal(t, []uint{review.ID}, notifier.fanouts)
	assert.Equal(t, []uint{uint(7)}, invalidator.users)

	stored, err := repo.GetReviewByID(review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStateApproved, stored.State)
}

func TestSubmitReviewEmptyCommentAutoRejected(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, recorder, notifier, _ := newReviewServiceForTest(repo)

	review, err := svc.SubmitReview(context.Background(), 1, "book-1", models.CreateReviewRequest{
		Rating: 3,
		Text:   "",
	})
	require.NoError(t, err) // a terminal moderation outcome is not a failure

	assert.Equal(t, models.ReviewStateAutoRejected, review.State)
	assert.True(t, review.AutoRejected)
	require.NotNil(t, review.RejectionReason)
	assert.Equal(t, models.ReasonEmptyComment, *review.RejectionReason)
	assert.Equal(t, []models.ReasonCode{models.ReasonEmptyComment}, review.ModerationReasons)

	// Nothing downstream fires for an invisible review
	assert.Empty(t, recorder.recorded)
	assert.Empty(t, notifier.fanouts)
}

func TestSubmitReplyParentRules(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)
	ctx := context.Background()

	parent, err := svc.SubmitReview(ctx, 1, "book-1", models.CreateReviewRequest{Rating: 4, Text: cleanComment})
	require.NoError(t, err)
	require.Equal(t, models.ReviewStateApproved, parent.State)

	reply, err := svc.SubmitReview(ctx, 2, "book-1", models.CreateReviewRequest{
		Rating: 3, Text: cleanComment, ParentReviewID: &parent.ID,
	})
	require.NoError(t, err)
	assert.True(t, reply.IsReply())

	// Replies cannot nest beyond one level
	_, err = svc.SubmitReview(ctx, 3, "book-1", models.CreateReviewRequest{
		Rating: 3, Text: cleanComment, ParentReviewID: &reply.ID,
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeParentNotVisible))

	// A parent on a different book cannot host the reply
	_, err = svc.SubmitReview(ctx, 3, "book-2", models.CreateReviewRequest{
		Rating: 3, Text: cleanComment, ParentReviewID: &parent.ID,
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeParentNotVisible))

	// A missing parent behaves the same
	missing := uint(9999)
	_, err = svc.SubmitReview(ctx, 3, "book-1", models.CreateReviewRequest{
		Rating: 3, Text: cleanComment, ParentReviewID: &missing,
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeParentNotVisible))
}

func TestSubmitReplyToDeletedParentFails(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)
	ctx := context.Background()

	parent, err := svc.SubmitReview(ctx, 1, "book-1", models.CreateReviewRequest{Rating: 4, Text: cleanComment})
	require.NoError(t, err)

	author := &models.User{ID: 1, Role: models.RoleUser}
	require.NoError(t, svc.DeleteReview(ctx, parent.ID, author))

	_, err = svc.SubmitReview(ctx, 2, "book-1", models.CreateReviewRequest{
		Rating: 3, Text: cleanComment, ParentReviewID: &parent.ID,
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeParentNotVisible))
}

func TestModerateReviewRequiresModeratorRole(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)

	regular := &models.User{ID: 5, Role: models.RoleUser}
	_, err := svc.ModerateReview(context.Background(), 1, models.ReviewStateApproved, regular)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
}

func TestModerateReviewOverridesAutoRejection(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, recorder, _, _ := newReviewServiceForTest(repo)
	ctx := context.Background()

	review, err := svc.SubmitReview(ctx, 1, "book-1", models.CreateReviewRequest{Rating: 3, Text: ""})
	require.NoError(t, err)
	require.Equal(t, models.ReviewStateAutoRejected, review.State)

	moderator := &models.User{ID: 9, Role: models.RoleModerator}
	moderated, err := svc.ModerateReview(ctx, review.ID, models.ReviewStateApproved, moderator)
	require.NoError(t, err)

	assert.Equal(t, models.ReviewStateApproved, moderated.State)
	assert.False(t, moderated.AutoModerated)
	assert.Equal(t, 1, recorder.recorded[review.ID])
}

func TestConcurrentModerationOnlyOneWins(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)
	ctx := context.Background()

	// Mid-band text so the review waits in pending for a manual decision
	review, err := svc.SubmitReview(ctx, 1, "book-1", models.CreateReviewRequest{
		Rating: 5,
		Text:   "What a boring damn slog, I could not care about a single character.",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatePending, review.State)

	moderator := &models.User{ID: 9, Role: models.RoleModerator}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	decisions := []models.ReviewState{models.ReviewStateApproved, models.ReviewStateAutoRejected}
	for i := range decisions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ModerateReview(ctx, review.ID, decisions[i], moderator)
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.Is(err, apperrors.CodeConcurrencyConflict) || apperrors.Is(err, apperrors.CodeConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	// The losing decision wrote nothing
	stored, err := repo.GetReviewByID(review.ID)
	require.NoError(t, err)
	assert.Contains(t, decisions, stored.State)
}

func TestTransitionRetryBudgetExhaustion(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)
	ctx := context.Background()

	review, err := svc.SubmitReview(ctx, 1, "book-1", models.CreateReviewRequest{
		Rating: 5,
		Text:   "What a boring damn slog, I could not care about a single character.",
	})
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatePending, review.State)

	// Every optimistic write loses its race
	repo.mu.Lock()
	repo.forcedConflicts = 100
	repo.mu.Unlock()

	moderator := &models.User{ID: 9, Role: models.RoleModerator}
	_, err = svc.ModerateReview(ctx, review.ID, models.ReviewStateApproved, moderator)
	assert.True(t, apperrors.Is(err, apperrors.CodeServiceUnavailable))
}

func TestDeleteReviewAuthorization(t *testing.T) {
	repo := newFakeReviewRepo()
	svc, _, _, _ := newReviewServiceForTest(repo)
	ctx := context.Background()

	review, err := svc.SubmitReview(ctx, 1, "book-1", models.CreateReviewRequest{Rating: 4, Text: cleanComment})
	require.NoError(t, err)

	stranger := &models.User{ID: 2, Role: models.RoleUser}
	err = svc.DeleteReview(ctx, review.ID, stranger)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

	moderator := &models.User{ID: 3, Role: models.RoleModerator}
	require.NoError(t, svc.DeleteReview(ctx, review.ID, moderator))

	stored, err := repo.GetReviewByID(review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStateDeleted, stored.State)

	// Deleting twice is a no-op, not an error
	assert.NoError(t, svc.DeleteReview(ctx, review.ID, moderator))
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to models.ReviewState
		manual   bool
		want     bool
	}{
		{models.ReviewStatePending, models.ReviewStateApproved, false, true},
		{models.ReviewStatePending, models.ReviewStateAutoRejected, false, true},
		{models.ReviewStateApproved, models.ReviewStateFlagged, false, true},
		{models.ReviewStateFlagged, models.ReviewStateApproved, false, true},
		{models.ReviewStateAutoRejected, models.ReviewStateApproved, false, false},
		{models.ReviewStateAutoRejected, models.ReviewStateApproved, true, true},
		{models.ReviewStateApproved, models.ReviewStatePending, false, false},
		{models.ReviewStateApproved, models.ReviewStatePending, true, false},
		{models.ReviewStateDeleted, models.ReviewStateApproved, true, false},
		{models.ReviewStatePending, models.ReviewStateDeleted, false, true},
		{models.ReviewStateAutoRejected, models.ReviewStateDeleted, false, true},
		{models.ReviewStateDeleted, models.ReviewStateDeleted, true, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to, tc.manual)
		assert.Equalf(t, tc.want, got, "%s -> %s (manual=%v)", tc.from, tc.to, tc.manual)
	}
}
