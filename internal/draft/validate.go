// internal/draft/validate.go
//
// Brief and design validation.
//
// Context
//   Submissions arrive from the onboarding wizard as JSON.  Before a Draft
//   exists we trim every field, run go-playground/validator over the
//   struct tags, and return a ValidationError listing each offending field
//   so the wizard can highlight it.  ValidationError is a user error, never
//   a 500, and is never retried.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package draft

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// ErrorField describes one validation failure.
type ErrorField struct {
	Name    string `json:"field"`
	Message string `json:"message"`
}

// ValidationError wraps []ErrorField and satisfies the error interface.
type ValidationError struct{ Fields []ErrorField }

func (ve *ValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		parts = append(parts, f.Name+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err (or anything it wraps) is a
// *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NormalizeBrief trims whitespace from every field and validates the
// result.  The returned Brief is the one that gets persisted.
func NormalizeBrief(b Brief) (Brief, error) {
	b.BusinessType = strings.TrimSpace(b.BusinessType)
	b.BusinessName = strings.TrimSpace(b.BusinessName)
	b.BusinessDescription = strings.TrimSpace(b.BusinessDescription)
	b.PreferredSubdomain = strings.ToLower(strings.TrimSpace(b.PreferredSubdomain))

	if err := toValidationError(v.Struct(b)); err != nil {
		return b, err
	}
	if b.PreferredSubdomain != "" && !ValidLabel(b.PreferredSubdomain) {
		return b, &ValidationError{Fields: []ErrorField{{
			Name:    "preferred_subdomain",
			Message: "Must be a valid hostname label.",
		}}}
	}
	return b, nil
}

// ValidateDesign checks palette and length limits.
func ValidateDesign(d Design) error { return toValidationError(v.Struct(d)) }

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]ErrorField, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, ErrorField{
			Name:    jsonName(fe.Field()),
			Message: message(fe),
		})
	}
	return out
}

// message maps a validator tag to a user-facing sentence.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "hexcolor":
		return "Must be a hex color such as #1a2b3c."
	default:
		return "Invalid input."
	}
}

var fieldNames = map[string]string{
	"BusinessType":        "business_type",
	"BusinessName":        "business_name",
	"BusinessDescription": "business_description",
	"PreferredSubdomain":  "preferred_subdomain",
	"Primary":             "colors.primary",
	"Secondary":           "colors.secondary",
	"Heading":             "fonts.heading",
	"Body":                "fonts.body",
	"Title":               "seo.title",
	"Description":         "seo.description",
	"Keyphrase":           "seo.keyphrase",
}

func jsonName(field string) string {
	if n, ok := fieldNames[field]; ok {
		return n
	}
	return strings.ToLower(field)
}
