package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/policies"
	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	"github.com/shashiranjanraj/phonedeals/pkg/bind"
	"github.com/shashiranjanraj/phonedeals/pkg/collection"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/metrics"
	"github.com/shashiranjanraj/phonedeals/pkg/storage"
)

const maxSaveAttempts = 5

// CatalogQuery filters the public catalog.
type CatalogQuery struct {
	Query  string
	Brand  models.Brand
	Seller uint
}

type CreateListingInput struct {
	Title string          `json:"title" validate:"required,max=255"`
	Brand string          `json:"brand" validate:"required,in=Samsung,Apple,HTC,Huawei,Nokia,LG,Motorola,Sony,BlackBerry"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock" validate:"gte=0"`
}

// UpdateListingInput carries the fields an admin may change. Nil fields are
// left alone.
type UpdateListingInput struct {
	Title    *string          `json:"title"    validate:"nullable,min=1,max=255"`
	Brand    *string          `json:"brand"    validate:"nullable,in=Samsung,Apple,HTC,Huawei,Nokia,LG,Motorola,Sony,BlackBerry"`
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock"    validate:"nullable,gte=0"`
	Disabled *bool            `json:"disabled"`
}

type ReviewInput struct {
	Rating  int    `json:"rating"  validate:"required,between=1,5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Image is an uploaded listing photo.
type Image struct {
	Body        io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// ListingService serves the catalog and every listing/review mutation. The
// same policy functions gate REST, GraphQL and admin callers; mutations by
// the admin principal are audited.
type ListingService struct {
	listings *repositories.ListingRepository
	users    *repositories.UserRepository
	audit    *AuditService
	disk     storage.Disk
	maxImage int64
}

func NewListingService(
	listings *repositories.ListingRepository,
	users *repositories.UserRepository,
	audit *AuditService,
	disk storage.Disk,
	maxImage int64,
) *ListingService {
	return &ListingService{listings: listings, users: users, audit: audit, disk: disk, maxImage: maxImage}
}

// Catalog lists the listings viewer may see. Disabled listings appear only
// for their seller and for the admin.
func (s *ListingService) Catalog(ctx context.Context, viewer auth.Principal, q CatalogQuery) ([]ListingView, error) {
	f := repositories.ListingFilter{
		Query:           strings.TrimSpace(q.Query),
		Brand:           q.Brand,
		SellerID:        q.Seller,
		IncludeDisabled: viewer.IsAdmin(),
	}
	if id, ok := viewer.UserID(); ok {
		f.OwnerID = id
	}
	rows, err := s.listings.Search(ctx, f)
	if err != nil {
		return nil, apperr.Internal("catalog failed", err)
	}

	visible := rows[:0]
	for i := range rows {
		if policies.IsListingVisible(&rows[i], viewer) {
			visible = append(visible, rows[i])
		}
	}
	return s.views(ctx, viewer, visible)
}

// Mine lists the viewer's own listings, disabled ones included.
func (s *ListingService) Mine(ctx context.Context, viewer auth.Principal) ([]ListingView, error) {
	id, ok := viewer.UserID()
	if !ok {
		return nil, apperr.Unauthorized("Unauthorized")
	}
	rows, err := s.listings.BySeller(ctx, id)
	if err != nil {
		return nil, apperr.Internal("listings failed", err)
	}
	return s.views(ctx, viewer, rows)
}

// Get returns one listing. A listing the viewer may not see is reported as
// missing.
func (s *ListingService) Get(ctx context.Context, viewer auth.Principal, id uint) (*ListingView, error) {
	l, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, viewer, []models.Listing{*l})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ListingService) visible(ctx context.Context, viewer auth.Principal, id uint) (*models.Listing, error) {
	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policies.IsListingVisible(l, viewer) {
		return nil, apperr.NotFound("listing not found")
	}
	return l, nil
}

// Create stores the image on the disk and inserts a listing sold by viewer.
func (s *ListingService) Create(ctx context.Context, viewer auth.Principal, in CreateListingInput, img Image) (*ListingView, error) {
	sellerID, ok := viewer.UserID()
	if !ok {
		return nil, apperr.Forbidden("only users can sell")
	}
	if err := bind.Struct(&in); err != nil {
		return nil, err
	}
	if !in.Price.IsPositive() {
		return nil, apperr.Validation("Validation failed", map[string]string{"price": "The price must be greater than 0."})
	}
	if err := s.checkImage(img); err != nil {
		return nil, err
	}

	if s.disk == nil {
		return nil, apperr.Internal("image upload failed", errors.New("no storage disk configured"))
	}
	key := path.Join("listings", uuid.NewString()+".jpeg")
	if err := s.disk.Put(ctx, key, io.LimitReader(img.Body, s.maxImage+1), "image/jpeg"); err != nil {
		return nil, apperr.Internal("image upload failed", err)
	}

	l := &models.Listing{
		Title:    strings.TrimSpace(in.Title),
		Brand:    models.Brand(in.Brand),
		Image:    key,
		Stock:    in.Stock,
		SellerID: sellerID,
		Price:    in.Price.Round(2),
		Reviews:  []models.Review{},
	}
	if err := s.listings.Create(ctx, l); err != nil {
		s.dropImage(ctx, key)
		return nil, apperr.Internal("listing create failed", err)
	}
	views, err := s.views(ctx, viewer, []models.Listing{*l})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ListingService) checkImage(img Image) error {
	fields := map[string]string{}
	switch {
	case img.Body == nil:
		fields["image"] = "The image field is required."
	case strings.ToLower(path.Ext(img.Filename)) != ".jpeg":
		fields["image"] = "The image must be a .jpeg file."
	case img.ContentType != "image/jpeg":
		fields["image"] = "The image must be of type image/jpeg."
	case img.Size > s.maxImage:
		fields["image"] = fmt.Sprintf("The image may not be greater than %d bytes.", s.maxImage)
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}
	return nil
}

func (s *ListingService) dropImage(ctx context.Context, key string) {
	if key == "" || s.disk == nil {
		return
	}
	if err := s.disk.Delete(ctx, key); err != nil {
		logger.WithCtx(ctx).Warn("image cleanup failed", "path", key, "error", err)
	}
}

// reviewerName looks up one name for a review that has already been saved.
// A failed lookup leaves the name empty rather than failing the write.
func (s *ListingService) reviewerName(ctx context.Context, id uint) map[uint]string {
	names, err := s.users.Names(ctx, []uint{id})
	if err != nil {
		logger.WithCtx(ctx).Warn("reviewer name lookup failed", "user_id", id, "error", err)
		return map[uint]string{}
	}
	return names
}

// Update applies in to the listing. Seller and admin only.
func (s *ListingService) Update(ctx context.Context, viewer auth.Principal, id uint, in UpdateListingInput) (*ListingView, error) {
	if err := bind.Struct(&in); err != nil {
		return nil, err
	}
	if in.Price != nil && !in.Price.IsPositive() {
		return nil, apperr.Validation("Validation failed", map[string]string{"price": "The price must be greater than 0."})
	}

	var before map[string]any
	l, err := s.mutate(ctx, id, func(l *models.Listing) error {
		if !policies.IsListingVisible(l, viewer) {
			return apperr.NotFound("listing not found")
		}
		if !policies.CanManageListing(l, viewer) {
			return apperr.Forbidden("You cannot edit this listing")
		}
		before = listingSnapshot(l)
		if in.Title != nil {
			l.Title = strings.TrimSpace(*in.Title)
		}
		if in.Brand != nil {
			l.Brand = models.Brand(*in.Brand)
		}
		if in.Price != nil {
			l.Price = in.Price.Round(2)
		}
		if in.Stock != nil {
			l.Stock = *in.Stock
		}
		if in.Disabled != nil {
			l.Disabled = *in.Disabled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if viewer.IsAdmin() {
		s.audit.Record(ctx, viewer, models.ActionUpdateListing, listingTarget(l.ID), before, listingSnapshot(l))
	}
	views, err := s.views(ctx, viewer, []models.Listing{*l})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// SetDisabled withdraws or restores a listing. Seller and admin only.
func (s *ListingService) SetDisabled(ctx context.Context, viewer auth.Principal, id uint, disabled bool) (*ListingView, error) {
	return s.Update(ctx, viewer, id, UpdateListingInput{Disabled: &disabled})
}

// Delete removes a listing with its reviews and image. Seller and admin only.
func (s *ListingService) Delete(ctx context.Context, viewer auth.Principal, id uint) error {
	l, err := s.visible(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !policies.CanManageListing(l, viewer) {
		return apperr.Forbidden("You cannot delete this listing")
	}

	start := time.Now()
	if err := s.listings.Delete(ctx, id); err != nil {
		return err
	}
	s.dropImage(ctx, l.Image)
	if viewer.IsAdmin() {
		before := listingSnapshot(l)
		before["reviews"] = len(l.Reviews)
		s.audit.RecordDelete(ctx, viewer, models.ActionDeleteListing, listingTarget(id), before, time.Since(start))
	}
	return nil
}

// AddReview prepends a review by viewer to a listing viewer can see.
func (s *ListingService) AddReview(ctx context.Context, viewer auth.Principal, id uint, in ReviewInput) (*ReviewView, error) {
	reviewer, ok := viewer.UserID()
	if !ok {
		return nil, apperr.Forbidden("only users can review")
	}
	if err := bind.Struct(&in); err != nil {
		return nil, err
	}

	var added models.Review
	l, err := s.mutate(ctx, id, func(l *models.Listing) error {
		if !policies.IsListingVisible(l, viewer) {
			return apperr.NotFound("listing not found")
		}
		added = models.NewReview(reviewer, in.Rating, strings.TrimSpace(in.Comment))
		l.PrependReview(added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	names := s.reviewerName(ctx, reviewer)
	v := reviewView(added, l, viewer, names)
	return &v, nil
}

// ToggleReview flips the hidden flag of one review. The listing must be
// visible to viewer and viewer must pass CanToggleReview. Admin toggles are
// audited.
func (s *ListingService) ToggleReview(ctx context.Context, viewer auth.Principal, listingID uint, reviewID string) (*ReviewView, error) {
	var before, after models.Review
	l, err := s.mutate(ctx, listingID, func(l *models.Listing) error {
		if !policies.IsListingVisible(l, viewer) {
			return apperr.NotFound("listing not found")
		}
		i := l.FindReview(reviewID)
		if i < 0 {
			return apperr.NotFound("review not found")
		}
		if !policies.CanToggleReview(l.Reviews[i], l, viewer) {
			return apperr.Forbidden("You cannot change this review")
		}
		before = l.Reviews[i]
		l.Reviews[i].Hidden = !l.Reviews[i].Hidden
		after = l.Reviews[i]
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReviewToggles.WithLabelValues(role(viewer), strconv.FormatBool(after.Hidden)).Inc()
	if viewer.IsAdmin() {
		meta := func(r models.Review) map[string]any {
			return map[string]any{"listing": l.ID, "reviewer": r.ReviewerID, "hidden": r.Hidden}
		}
		s.audit.Record(ctx, viewer, models.ActionToggleReviewHidden, reviewTarget(reviewID), meta(before), meta(after))
	}
	names := s.reviewerName(ctx, after.ReviewerID)
	v := reviewView(after, l, viewer, names)
	return &v, nil
}

// DecreaseStock takes qty units off a listing's stock.
func (s *ListingService) DecreaseStock(ctx context.Context, viewer auth.Principal, id uint, qty int) (*ListingView, error) {
	if !viewer.IsUser() {
		return nil, apperr.Forbidden("only users can buy")
	}
	if qty < 1 {
		return nil, apperr.Validation("Validation failed", map[string]string{"quantity": "The quantity must be at least 1."})
	}
	l, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if l.Disabled {
		return nil, apperr.NotFound("listing not found")
	}
	if err := s.listings.DecrementStock(ctx, id, qty); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewer, id)
}

// mutate loads a listing, applies fn and saves it, retrying when another
// writer bumped the version in between.
func (s *ListingService) mutate(ctx context.Context, id uint, fn func(*models.Listing) error) (*models.Listing, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		l, err := s.listings.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(l); err != nil {
			return nil, err
		}
		err = s.listings.Save(ctx, l)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, repositories.ErrStale) {
			return nil, apperr.Internal("listing update failed", err)
		}
		logger.WithCtx(ctx).Debug("listing changed concurrently, retrying", "listing_id", id, "attempt", attempt)
	}
	return nil, apperr.Conflict("Listing is busy, try again")
}

func (s *ListingService) views(ctx context.Context, viewer auth.Principal, rows []models.Listing) ([]ListingView, error) {
	ids := collection.Unique(collection.FlatMap(rows, func(l models.Listing) []uint {
		return append([]uint{l.SellerID}, collection.Map(l.Reviews, func(r models.Review) uint { return r.ReviewerID })...)
	}))
	names, err := s.users.Names(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("listing names failed", err)
	}

	out := make([]ListingView, 0, len(rows))
	for i := range rows {
		l := &rows[i]
		v := ListingView{
			ID:        l.ID,
			Title:     l.Title,
			Brand:     l.Brand,
			Image:     s.imageURL(l.Image),
			Stock:     l.Stock,
			Price:     l.Price,
			Seller:    Party{ID: l.SellerID, Name: names[l.SellerID]},
			Disabled:  l.Disabled,
			Reviews:   []ReviewView{},
			CreatedAt: l.CreatedAt,
		}
		for _, r := range policies.VisibleReviews(l, viewer) {
			v.Reviews = append(v.Reviews, reviewView(r, l, viewer, names))
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *ListingService) imageURL(key string) string {
	if key == "" || s.disk == nil {
		return ""
	}
	return s.disk.URL(key)
}

func reviewView(r models.Review, l *models.Listing, viewer auth.Principal, names map[uint]string) ReviewView {
	return ReviewView{
		ID:        r.ID,
		Reviewer:  Party{ID: r.ReviewerID, Name: names[r.ReviewerID]},
		Rating:    r.Rating,
		Comment:   r.Comment,
		Hidden:    r.Hidden,
		CanToggle: policies.CanToggleReview(r, l, viewer),
		CreatedAt: r.CreatedAt,
	}
}

func role(p auth.Principal) string {
	switch {
	case p.IsAdmin():
		return "admin"
	case p.IsUser():
		return "user"
	default:
		return "anonymous"
	}
}
