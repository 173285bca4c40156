package services

import (
	"context"
	"sort"

	"github.com/anonto42/bookhive/backend/internal/repositories"
)

const (
	recommenderMinRating  = 4
	recommenderScanLimit  = 100
	recommenderMaxResults = 20
)

// SocialRecommender recommends books the user's follow graph rates
// highly or favorites, excluding books the user already reviewed.
type SocialRecommender struct {
	reviews   repositories.ReviewRepository
	follows   repositories.FollowRepository
	favorites repositories.FavoriteRepository
}

func NewSocialRecommender(
	reviews repositories.ReviewRepository,
	follows repositories.FollowRepository,
	favorites repositories.FavoriteRepository,
) *SocialRecommender {
	return &SocialRecommender{reviews: reviews, follows: follows, favorites: favorites}
}

func (r *SocialRecommender) Compute(ctx context.Context, userID uint) ([]RecommendationItem, error) {
	followingIDs, err := r.follows.GetFollowingIDs(userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	ownBookIDs, err := r.reviews.GetBookIDsReviewedBy(userID)
	if err != nil {
		return nil, err
	}
	for _, id := range ownBookIDs {
		seen[id] = true
	}

	scores := make(map[string]float64)
	topRated, err := r.reviews.GetTopRatedByAuthors(followingIDs, recommenderMinRating, recommenderScanLimit)
	if err != nil {
		return nil, err
	}
	for _, review := range topRated {
		if seen[review.BookID] {
			continue
		}
		scores[review.BookID] += float64(review.Rating)
	}

	for _, followedID := range followingIDs {
		bookIDs, err := r.favorites.GetFavoriteBookIDs(followedID)
		if err != nil {
			return nil, err
		}
		for _, bookID := range bookIDs {
			if seen[bookID] {
				continue
			}
			scores[bookID] += 2
		}
	}

	items := make([]RecommendationItem, 0, len(scores))
	for bookID, score := range scores {
		items = append(items, RecommendationItem{BookID: bookID, Score: score})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].BookID < items[j].BookID // stable order for equal scores
	})
	if len(items) > recommenderMaxResults {
		items = items[:recommenderMaxResults]
	}
	return items, nil
}
