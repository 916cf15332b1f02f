// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shashiranjanraj/phonedeals/config"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/validate"
)

// JSON decodes r.Body as JSON into dest and runs validation.
// The body is capped at MAX_BODY_BYTES (default 4 MB).
// Every failure is returned as an apperr validation error; field-level
// messages are carried in Fields.
func JSON(r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, config.Int64("MAX_BODY_BYTES", 4<<20))

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation(fmt.Sprintf("request body too large (max %d bytes)", maxErr.Limit), nil)
		}
		return apperr.Validation("invalid JSON body", nil).Wrap(err)
	}

	return Struct(dest)
}

// Struct validates an already-populated struct (e.g. one built from a
// multipart form).
func Struct(v interface{}) error {
	if errs := validate.Struct(v); validate.HasErrors(errs) {
		return apperr.Validation("Validation failed", errs)
	}
	return nil
}
