package services

import (
	"context"
	"strings"
	"time"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/bind"
	"github.com/shashiranjanraj/phonedeals/pkg/collection"
)

// ReviewQuery filters the moderation review list. Every field matches as a
// case-insensitive substring.
type ReviewQuery struct {
	Listing string
	User    string
	Content string
}

// AdminUserInput carries the account fields an admin may change.
type AdminUserInput struct {
	FirstName *string `json:"firstname" validate:"nullable,min=1,max=100"`
	LastName  *string `json:"lastname"  validate:"nullable,min=1,max=100"`
	Email     *string `json:"email"     validate:"nullable,email,max=255"`
	Disabled  *bool   `json:"disabled"`
}

// Activity is everything one user has put on the marketplace.
type Activity struct {
	User     AdminUserView     `json:"user"`
	Listings []ListingView     `json:"listings"`
	Reviews  []AdminReviewView `json:"reviews"`
}

// AdminService backs the moderation console. Listing and review mutations
// go through ListingService so the admin obeys the same policies as
// everyone else.
type AdminService struct {
	users    *repositories.UserRepository
	listings *repositories.ListingRepository
	catalog  *ListingService
	audit    *AuditService
}

func NewAdminService(
	users *repositories.UserRepository,
	listings *repositories.ListingRepository,
	catalog *ListingService,
	audit *AuditService,
) *AdminService {
	return &AdminService{users: users, listings: listings, catalog: catalog, audit: audit}
}

// Listings returns every listing, disabled included, sorted by title.
func (s *AdminService) Listings(ctx context.Context, query string, brand models.Brand) ([]AdminListingView, error) {
	rows, err := s.listings.Search(ctx, repositories.ListingFilter{
		Query:           strings.TrimSpace(query),
		Brand:           brand,
		IncludeDisabled: true,
		OrderByTitle:    true,
	})
	if err != nil {
		return nil, apperr.Internal("listings failed", err)
	}

	ids := collection.Unique(collection.Map(rows, func(l models.Listing) uint { return l.SellerID }))
	names, err := s.users.Names(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("listings failed", err)
	}

	out := make([]AdminListingView, 0, len(rows))
	for _, l := range rows {
		out = append(out, AdminListingView{
			ID:          l.ID,
			Title:       l.Title,
			Brand:       l.Brand,
			Price:       l.Price,
			Stock:       l.Stock,
			Disabled:    l.Disabled,
			Seller:      Party{ID: l.SellerID, Name: names[l.SellerID]},
			ReviewCount: len(l.Reviews),
		})
	}
	return out, nil
}

func (s *AdminService) UpdateListing(ctx context.Context, p auth.Principal, id uint, in UpdateListingInput) (*ListingView, error) {
	return s.catalog.Update(ctx, p, id, in)
}

func (s *AdminService) DeleteListing(ctx context.Context, p auth.Principal, id uint) error {
	return s.catalog.Delete(ctx, p, id)
}

func (s *AdminService) ToggleReview(ctx context.Context, p auth.Principal, listingID uint, reviewID string) (*ReviewView, error) {
	return s.catalog.ToggleReview(ctx, p, listingID, reviewID)
}

// Reviews flattens every review on the marketplace, newest first.
func (s *AdminService) Reviews(ctx context.Context, q ReviewQuery) ([]AdminReviewView, error) {
	rows, err := s.listings.All(ctx)
	if err != nil {
		return nil, apperr.Internal("reviews failed", err)
	}
	return s.flatten(ctx, rows, q, 0)
}

func (s *AdminService) flatten(ctx context.Context, rows []models.Listing, q ReviewQuery, reviewer uint) ([]AdminReviewView, error) {
	ids := collection.Unique(collection.FlatMap(rows, func(l models.Listing) []uint {
		return collection.Map(l.Reviews, func(r models.Review) uint { return r.ReviewerID })
	}))
	names, err := s.users.Names(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("reviews failed", err)
	}

	out := []AdminReviewView{}
	for _, l := range rows {
		if !contains(l.Title, q.Listing) {
			continue
		}
		for _, r := range l.Reviews {
			if reviewer != 0 && r.ReviewerID != reviewer {
				continue
			}
			if !contains(names[r.ReviewerID], q.User) || !contains(r.Comment, q.Content) {
				continue
			}
			out = append(out, AdminReviewView{
				ListingID:    l.ID,
				ListingTitle: l.Title,
				ID:           r.ID,
				Reviewer:     Party{ID: r.ReviewerID, Name: names[r.ReviewerID]},
				Rating:       r.Rating,
				Comment:      r.Comment,
				Hidden:       r.Hidden,
				CreatedAt:    r.CreatedAt,
			})
		}
	}
	return collection.SortStable(out, func(a, b AdminReviewView) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func contains(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}

// Users lists accounts whose name or email contains query.
func (s *AdminService) Users(ctx context.Context, query string) ([]AdminUserView, error) {
	users, err := s.users.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, apperr.Internal("users failed", err)
	}
	out := make([]AdminUserView, 0, len(users))
	for i := range users {
		out = append(out, adminUserView(&users[i]))
	}
	return out, nil
}

func adminUserView(u *models.User) AdminUserView {
	return AdminUserView{ID: u.ID, Name: u.FullName(), Email: u.Email, LastLogin: u.LastLogin, Disabled: u.Disabled}
}

// UpdateUser applies in and records UPDATE_USER.
func (s *AdminService) UpdateUser(ctx context.Context, p auth.Principal, id uint, in AdminUserInput) (*AdminUserView, error) {
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		in.Email = &e
	}
	if err := bind.Struct(&in); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil && *in.Email != user.Email {
		taken, err := s.users.EmailTaken(ctx, *in.Email, user.ID)
		if err != nil {
			return nil, apperr.Internal("user update failed", err)
		}
		if taken {
			return nil, apperr.Conflict("Email already registered")
		}
	}

	before := userSnapshot(user)
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Disabled != nil {
		user.Disabled = *in.Disabled
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, p, models.ActionUpdateUser, userTarget(user.ID), before, userSnapshot(user))
	v := adminUserView(user)
	return &v, nil
}

// DeleteUser removes an account and records DELETE_USER. Listings the user
// was selling stay in place.
func (s *AdminService) DeleteUser(ctx context.Context, p auth.Principal, id uint) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.RecordDelete(ctx, p, models.ActionDeleteUser, userTarget(id), userSnapshot(user), time.Since(start))
	return nil
}

// Activity returns a user's listings and every review they wrote.
func (s *AdminService) Activity(ctx context.Context, p auth.Principal, id uint) (*Activity, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	listings, err := s.catalog.Catalog(ctx, p, CatalogQuery{Seller: id})
	if err != nil {
		return nil, err
	}
	all, err := s.listings.All(ctx)
	if err != nil {
		return nil, apperr.Internal("activity failed", err)
	}
	reviews, err := s.flatten(ctx, all, ReviewQuery{}, id)
	if err != nil {
		return nil, err
	}
	return &Activity{User: adminUserView(user), Listings: listings, Reviews: reviews}, nil
}

// Logs lists audit entries newest first.
func (s *AdminService) Logs(ctx context.Context, f repositories.LogFilter) ([]models.AdminLog, error) {
	logs, err := s.audit.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("logs failed", err)
	}
	return logs, nil
}
