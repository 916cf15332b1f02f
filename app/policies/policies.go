// Package policies decides who may see and moderate listings and reviews.
// Every function is pure: callers load the rows, the policy only reads them.
package policies

import (
	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
)

// IsListingVisible reports whether viewer may see l at all. A disabled
// listing stays visible to its seller and the admin.
func IsListingVisible(l *models.Listing, viewer auth.Principal) bool {
	if l == nil {
		return false
	}
	return !l.Disabled || viewer.IsAdmin() || viewer.Is(l.SellerID)
}

// IsReviewVisible reports whether viewer may see r on l. It does not consult
// the listing gate; see VisibleReviews.
func IsReviewVisible(r models.Review, l *models.Listing, viewer auth.Principal) bool {
	if !r.Hidden {
		return true
	}
	return viewer.IsAdmin() || viewer.Is(r.ReviewerID) || viewer.Is(l.SellerID)
}

// CanToggleReview reports whether viewer may flip the hidden flag of r.
// The reviewer, the listing's seller and the admin may; nobody else.
func CanToggleReview(r models.Review, l *models.Listing, viewer auth.Principal) bool {
	return viewer.IsAdmin() || viewer.Is(r.ReviewerID) || viewer.Is(l.SellerID)
}

// CanManageListing reports whether viewer may disable, enable or delete l.
func CanManageListing(l *models.Listing, viewer auth.Principal) bool {
	return viewer.IsAdmin() || viewer.Is(l.SellerID)
}

// VisibleReviews returns the reviews of l that viewer may see, in stored
// order. It returns nil when the listing itself is not visible.
func VisibleReviews(l *models.Listing, viewer auth.Principal) []models.Review {
	if !IsListingVisible(l, viewer) {
		return nil
	}
	out := make([]models.Review, 0, len(l.Reviews))
	for _, r := range l.Reviews {
		if IsReviewVisible(r, l, viewer) {
			out = append(out, r)
		}
	}
	return out
}
