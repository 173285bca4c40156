package moderation

import (
	"strings"
	"unicode"

	"github.com/anonto42/bookhive/backend/internal/models"
)

// Score thresholds. At or above ApproveThreshold a review goes straight
// to approved; below RejectThreshold it is auto-rejected; in between it
// queues as pending for manual review.
const (
	ApproveThreshold = 80
	RejectThreshold  = 40
)

// Penalty weights per signal
const (
	weightProfanity      = 35
	weightProfanityCap   = 70 // total cap across all profanity hits
	weightRatingMismatch = 25
	weightAllCaps        = 20
	weightAuthorHistory  = 20
	weightRepeatedChars  = 15
	weightTooShort       = 15
)

const (
	minCommentRunes     = 20
	repeatedRunLength   = 5
	capsRatioThreshold  = 0.7
	capsMinLetters      = 12
	historyMinReviews   = 3
	historyRejectedRate = 0.5
)

// ScoreInput is everything the scorer looks at. Author history is the
// caller's snapshot of the author's recent moderation outcomes.
type ScoreInput struct {
	Text                 string
	Rating               int
	AuthorRecentTotal    int
	AuthorRecentRejected int
}

// Result carries the score, the reasons that lowered it, and the
// recommended review state.
type Result struct {
	Score          int
	Reasons        []models.ReasonCode
	Recommendation models.ReviewState
}

var profanityLexicon = []string{
	"damn", "hell", "crap", "stupid", "idiot", "trash", "garbage", "wtf",
}

var negativeWords = []string{
	"terrible", "awful", "horrible", "worst", "boring", "hated", "waste", "bad",
}

var positiveWords = []string{
	"amazing", "wonderful", "fantastic", "best", "loved", "brilliant", "beautiful", "great",
}

// Weight returns the penalty weight for a reason code. It decides the
// rejectionReason when several signals fire on an auto-rejected review.
func Weight(reason models.ReasonCode) int {
	switch reason {
	case models.ReasonEmptyComment:
		return 100
	case models.ReasonProfanity:
		return weightProfanity
	case models.ReasonRatingMismatch:
		return weightRatingMismatch
	case models.ReasonAllCaps:
		return weightAllCaps
	case models.ReasonAuthorHistory:
		return weightAuthorHistory
	case models.ReasonRepeatedChars:
		return weightRepeatedChars
	case models.ReasonTooShort:
		return weightTooShort
	}
	return 0
}

// Score is deterministic and pure: identical input always yields the
// identical score and reason set.
func Score(in ScoreInput) Result {
	trimmed := strings.TrimSpace(in.Text)
	if trimmed == "" {
		return Result{
			Score:          0,
			Reasons:        []models.ReasonCode{models.ReasonEmptyComment},
			Recommendation: models.ReviewStateAutoRejected,
		}
	}

	score := 100
	var reasons []models.ReasonCode

	if p := profanityPenalty(trimmed); p > 0 {
		score -= p
		reasons = append(reasons, models.ReasonProfanity)
	}
	if hasRepeatedRun(trimmed) {
		score -= weightRepeatedChars
		reasons = append(reasons, models.ReasonRepeatedChars)
	}
	if isMostlyCaps(trimmed) {
		score -= weightAllCaps
		reasons = append(reasons, models.ReasonAllCaps)
	}
	if len([]rune(trimmed)) < minCommentRunes {
		score -= weightTooShort
		reasons = append(reasons, models.ReasonTooShort)
	}
	if ratingMismatch(trimmed, in.Rating) {
		score -= weightRatingMismatch
		reasons = append(reasons, models.ReasonRatingMismatch)
	}
	if elevatedHistory(in.AuthorRecentTotal, in.AuthorRecentRejected) {
		score -= weightAuthorHistory
		reasons = append(reasons, models.ReasonAuthorHistory)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	recommendation := models.ReviewStatePending
	switch {
	case score >= ApproveThreshold:
		recommendation = models.ReviewStateApproved
	case score < RejectThreshold:
		recommendation = models.ReviewStateAutoRejected
	}

	return Result{Score: score, Reasons: reasons, Recommendation: recommendation}
}

// TopReason returns the highest-weighted reason from a result, used as
// the rejection reason on auto-rejected reviews.
func TopReason(reasons []models.ReasonCode) models.ReasonCode {
	var top models.ReasonCode
	best := -1
	for _, r := range reasons {
		if w := Weight(r); w > best {
			best = w
			top = r
		}
	}
	return top
}

func profanityPenalty(text string) int {
	lower := strings.ToLower(text)
	penalty := 0
	for _, word := range profanityLexicon {
		if containsWord(lower, word) {
			penalty += weightProfanity
		}
	}
	if penalty > weightProfanityCap {
		penalty = weightProfanityCap
	}
	return penalty
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !unicode.IsLetter(rune(lower[start-1]))
		afterOK := end == len(lower) || !unicode.IsLetter(rune(lower[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = end
	}
}

func hasRepeatedRun(text string) bool {
	run := 0
	var prev rune
	for i, r := range text {
		if i > 0 && r == prev {
			run++
			if run+1 >= repeatedRunLength {
				return true
			}
		} else {
			run = 0
		}
		prev = r
	}
	return false
}

func isMostlyCaps(text string) bool {
	letters, uppers := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters < capsMinLetters {
		return false
	}
	return float64(uppers)/float64(letters) > capsRatioThreshold
}

func ratingMismatch(text string, rating int) bool {
	lower := strings.ToLower(text)
	negative := false
	for _, w := range negativeWords {
		if containsWord(lower, w) {
			negative = true
			break
		}
	}
	positive := false
	for _, w := range positiveWords {
		if containsWord(lower, w) {
			positive = true
			break
		}
	}
	if rating >= 4 && negative && !positive {
		return true
	}
	if rating <= 2 && positive && !negative {
		return true
	}
	return false
}

func elevatedHistory(total, rejected int) bool {
	if total < historyMinReviews {
		return false
	}
	return float64(rejected)/float64(total) >= historyRejectedRate
}
