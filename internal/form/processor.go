// internal/form/processor.go
//
// Content form processor: the validation boundary in front of the version
// engine.
//
// Context
//   Editors submit the whole minisite as one JSON payload.  This file turns
//   that payload into a validated content document plus sanitized display
//   fields, or a list of field errors the UI can render inline.  Validation
//   never happens inside the version state machine; by the time the service
//   sees a Document, it is trusted.
//
// Workflow
//   •  Process unmarshals the payload and runs struct validation
//      (go-playground/validator with json tag names).
//   •  Validation failures are captured in []FieldError so templates can
//      highlight exact issues; they are returned as data, never as error
//      values.
//   •  On success the opaque site JSON is wrapped into a content.Document,
//      and missing slugs are derived from the display fields.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/minisite/internal/content"
	"github.com/yanizio/minisite/internal/reservation"
	"github.com/yanizio/minisite/internal/site"
)

// FieldError describes a single validation failure so the template can
// render a field-level message.  An empty Field means the payload as a
// whole was unusable.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Submission is the raw editor payload.  Tags drive both decoding and
// validation; the `site` blob stays opaque beyond being well-formed JSON.
type Submission struct {
	Label   string `json:"label"   validate:"max=120"`
	Comment string `json:"comment" validate:"max=500"`

	Name          string `json:"name"           validate:"required,max=200"`
	Title         string `json:"title"          validate:"required,max=200"`
	City          string `json:"city"           validate:"max=100"`
	Region        string `json:"region"         validate:"max=100"`
	CountryCode   string `json:"country_code"   validate:"omitempty,iso3166_1_alpha2"`
	PostalCode    string `json:"postal_code"    validate:"max=20"`
	SiteTemplate  string `json:"site_template"  validate:"required,oneof=v2025 classic minimal"`
	Palette       string `json:"palette"        validate:"required,oneof=blue green red teal amber"`
	Industry      string `json:"industry"       validate:"max=100"`
	DefaultLocale string `json:"default_locale" validate:"omitempty,bcp47_language_tag"`

	BusinessSlug string `json:"business_slug" validate:"omitempty,slug"`
	LocationSlug string `json:"location_slug" validate:"omitempty,slug"`

	SchemaVersion int             `json:"schema_version" validate:"required,min=1"`
	Site          json.RawMessage `json:"site"           validate:"required"`
}

// Result is the validated output Process hands to the caller, shaped so it
// maps one-to-one onto the versioning service's draft input.
type Result struct {
	Label   string
	Comment string
	Slugs   site.SlugPair
	Display site.DisplayFields
	Content content.Document
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()

	// Error messages should name json fields, not Go struct fields.
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// `slug` mirrors the reservation collaborator's format rule, so a value
	// that passes here never bounces at publish time for format reasons.
	_ = val.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return reservation.Valid(fl.Field().String())
	})
	return val
}

// Process validates raw and returns either a Result or the field errors.  A
// non-empty error slice means UI re-render is required.
func Process(raw []byte) (*Result, []FieldError) {
	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, []FieldError{{Field: "", Message: "Request body is not valid JSON."}}
	}

	if err := v.Struct(&sub); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); !ok {
			return nil, []FieldError{{Field: "", Message: "Submission could not be validated."}}
		}
		errs := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			errs = append(errs, FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return nil, errs
	}

	doc, err := content.New(sub.SchemaVersion, sub.Site)
	if err != nil {
		return nil, []FieldError{{Field: "site", Message: "Site content must be valid JSON."}}
	}

	return &Result{
		Label:   sub.Label,
		Comment: sub.Comment,
		Slugs:   deriveSlugs(&sub),
		Display: site.DisplayFields{
			Name:          strings.TrimSpace(sub.Name),
			Title:         strings.TrimSpace(sub.Title),
			City:          strings.TrimSpace(sub.City),
			Region:        strings.TrimSpace(sub.Region),
			CountryCode:   strings.ToUpper(sub.CountryCode),
			PostalCode:    strings.TrimSpace(sub.PostalCode),
			SiteTemplate:  sub.SiteTemplate,
			Palette:       sub.Palette,
			Industry:      strings.TrimSpace(sub.Industry),
			DefaultLocale: sub.DefaultLocale,
		},
		Content: doc,
	}, nil
}

// deriveSlugs fills in whichever slug halves the editor left blank.
func deriveSlugs(sub *Submission) site.SlugPair {
	pair := site.SlugPair{Business: sub.BusinessSlug, Location: sub.LocationSlug}
	if pair.Business == "" {
		pair.Business = reservation.Normalize(sub.Name)
	}
	if pair.Location == "" {
		loc := sub.City
		if loc == "" {
			loc = sub.Region
		}
		pair.Location = reservation.Normalize(loc)
	}
	return pair
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// message maps a validator tag to a user-friendly default.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "oneof":
		return "Not one of the allowed choices."
	case "slug":
		return "May only contain lowercase letters, numbers, and hyphens."
	case "iso3166_1_alpha2":
		return "Must be a two-letter country code."
	case "bcp47_language_tag":
		return "Must be a valid locale tag."
	default:
		return "Invalid input."
	}
}
