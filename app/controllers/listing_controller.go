package controllers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/ctx"
)

type ListingController struct {
	listings *services.ListingService
	maxImage int64
}

func NewListingController(listings *services.ListingService, maxImage int64) *ListingController {
	return &ListingController{listings: listings, maxImage: maxImage}
}

func badID(c *ctx.Context) {
	c.Fail(apperr.NotFound("listing not found"))
}

// Index GET /api/listings?query=&brand=&seller=
func (l *ListingController) Index(c *ctx.Context) {
	q := services.CatalogQuery{Query: c.Query("query"), Brand: models.Brand(c.Query("brand"))}
	if q.Brand != "" && !q.Brand.Valid() {
		c.Fail(apperr.Validation("Validation failed", map[string]string{"brand": "The selected brand is invalid."}))
		return
	}
	if s := c.Query("seller"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.Fail(apperr.Validation("Validation failed", map[string]string{"seller": "The seller must be a user id."}))
			return
		}
		q.Seller = uint(id)
	}
	views, err := l.listings.Catalog(c.Context(), c.Principal(), q)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(views)
}

// Show GET /api/listings/{id}
func (l *ListingController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	view, err := l.listings.Get(c.Context(), c.Principal(), id)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(view)
}

// Store POST /api/listings (multipart: title, brand, price, stock, image)
func (l *ListingController) Store(c *ctx.Context) {
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, l.maxImage+1<<20)
	if err := c.R.ParseMultipartForm(l.maxImage + 1<<20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.Fail(apperr.Validation("Validation failed", map[string]string{"image": "The upload is too large."}))
			return
		}
		c.Fail(apperr.Validation("invalid multipart form", nil).Wrap(err))
		return
	}
	defer c.R.MultipartForm.RemoveAll() //nolint:errcheck

	fields := map[string]string{}
	in := services.CreateListingInput{
		Title: c.R.FormValue("title"),
		Brand: c.R.FormValue("brand"),
	}
	price, err := decimal.NewFromString(strings.TrimSpace(c.R.FormValue("price")))
	if err != nil {
		fields["price"] = "The price must be a number."
	}
	in.Price = price
	if s := strings.TrimSpace(c.R.FormValue("stock")); s != "" {
		if in.Stock, err = strconv.Atoi(s); err != nil {
			fields["stock"] = "The stock must be an integer."
		}
	}
	if len(fields) > 0 {
		c.Fail(apperr.Validation("Validation failed", fields))
		return
	}

	var img services.Image
	file, header, err := c.R.FormFile("image")
	if err == nil {
		defer file.Close()
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		head = head[:n]
		img = services.Image{
			Body:        io.MultiReader(bytes.NewReader(head), file),
			Filename:    header.Filename,
			ContentType: sniff(head, header.Header.Get("Content-Type")),
			Size:        header.Size,
		}
	}

	view, err := l.listings.Create(c.Context(), c.Principal(), in, img)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(view)
}

// sniff returns the declared type only when the bytes agree with it.
func sniff(head []byte, declared string) string {
	detected := http.DetectContentType(head)
	if detected != declared {
		return detected
	}
	return declared
}

// Destroy DELETE /api/listings/{id}
func (l *ListingController) Destroy(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	if err := l.listings.Delete(c.Context(), c.Principal(), id); err != nil {
		c.Fail(err)
		return
	}
	c.Message("Listing deleted")
}

// Disable POST /api/listings/{id}/disable
func (l *ListingController) Disable(c *ctx.Context) { l.setDisabled(c, true) }

// Enable POST /api/listings/{id}/enable
func (l *ListingController) Enable(c *ctx.Context) { l.setDisabled(c, false) }

func (l *ListingController) setDisabled(c *ctx.Context, disabled bool) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	view, err := l.listings.SetDisabled(c.Context(), c.Principal(), id, disabled)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(view)
}

// StoreReview POST /api/listings/{id}/reviews
func (l *ListingController) StoreReview(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	var in services.ReviewInput
	if !c.BindJSON(&in) {
		return
	}
	review, err := l.listings.AddReview(c.Context(), c.Principal(), id, in)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Created(review)
}

// ToggleReview PATCH /api/listings/{id}/reviews/{reviewID}/toggle-hidden
func (l *ListingController) ToggleReview(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	review, err := l.listings.ToggleReview(c.Context(), c.Principal(), id, c.Param("reviewID"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(review)
}

// DecreaseStock PATCH /api/listings/{id}/decrease-stock
func (l *ListingController) DecreaseStock(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badID(c)
		return
	}
	var in struct {
		Quantity int `json:"quantity" validate:"required,gte=1"`
	}
	if !c.BindJSON(&in) {
		return
	}
	view, err := l.listings.DecreaseStock(c.Context(), c.Principal(), id, in.Quantity)
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(view)
}
