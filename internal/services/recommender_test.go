package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/bookhive/backend/internal/models"
)

type fakeFavoriteRepo struct {
	favorites map[uint][]string
}

func (f *fakeFavoriteRepo) CreateFavorite(*models.Favorite) error       { return nil }
func (f *fakeFavoriteRepo) HasUserFavorited(string, uint) (bool, error) { return false, nil }
func (f *fakeFavoriteRepo) DeleteFavorite(string, uint) error           { return nil }

func (f *fakeFavoriteRepo) GetFavoriteBookIDs(userID uint) ([]string, error) {
	return f.favorites[userID], nil
}

func approvedReview(repo *fakeReviewRepo, authorID uint, bookID string, rating int) {
	repo.CreateReview(&models.Review{
		AuthorID: authorID,
		BookID:   bookID,
		Rating:   rating,
		State:    models.ReviewStateApproved,
	})
}

func TestSocialRecommenderScoresFollowGraph(t *testing.T) {
	reviews := newFakeReviewRepo()
	approvedReview(reviews, 2, "book-a", 5)
	approvedReview(reviews, 2, "book-b", 4)
	approvedReview(reviews, 3, "book-a", 4)
	approvedReview(reviews, 3, "book-c", 3) // below the rating floor
	approvedReview(reviews, 4, "book-d", 5) // not followed

	follows := &fakeFollowRepo{following: map[uint][]uint{1: {2, 3}}}
	favorites := &fakeFavoriteRepo{favorites: map[uint][]string{2: {"book-e"}}}

	rec := NewSocialRecommender(reviews, follows, favorites)
	items, err := rec.Compute(context.Background(), 1)
	require.NoError(t, err)

	scores := make(map[string]float64, len(items))
	for _, item := range items {
		scores[item.BookID] = item.Score
	}

	assert.Equal(t, float64(9), scores["book-a"], "ratings from multiple followed users add up")
	assert.Equal(t, float64(4), scores["book-b"])
	assert.Equal(t, float64(2), scores["book-e"], "followed users' favorites count")
	assert.NotContains(t, scores, "book-c", "low-rated books are ignored")
	assert.NotContains(t, scores, "book-d", "unfollowed authors are ignored")

	// Sorted by score descending
	require.NotEmpty(t, items)
	assert.Equal(t, "book-a", items[0].BookID)
}

func TestSocialRecommenderExcludesOwnBooks(t *testing.T) {
	reviews := newFakeReviewRepo()
	approvedReview(reviews, 1, "book-a", 5) // the user's own review
	approvedReview(reviews, 2, "book-a", 5)
	approvedReview(reviews, 2, "book-b", 5)

	follows := &fakeFollowRepo{following: map[uint][]uint{1: {2}}}
	favorites := &fakeFavoriteRepo{favorites: map[uint][]string{2: {"book-a"}}}

	rec := NewSocialRecommender(reviews, follows, favorites)
	items, err := rec.Compute(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "book-b", items[0].BookID)
}

func TestSocialRecommenderEmptyGraph(t *testing.T) {
	rec := NewSocialRecommender(newFakeReviewRepo(), &fakeFollowRepo{}, &fakeFavoriteRepo{})
	items, err := rec.Compute(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}
