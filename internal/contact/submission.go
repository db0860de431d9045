package contact

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingFields  = errors.New("missing required fields")
	ErrInvalidEmail   = errors.New("invalid email format")
	ErrDeliveryFailed = errors.New("delivery failed")
)

// emailShape accepts local@domain.tld with no whitespace or extra @ in any part.
// RE2's \s is ASCII only, so vertical tab, Unicode separators and BOM are listed too.
var emailShape = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// Payload is the visitor-supplied part of a submission. It binds from JSON
// bodies and from form posts.
type Payload struct {
	Name    string `json:"name" form:"name" validate:"required"`
	Email   string `json:"email" form:"email" validate:"required,emailshape"`
	Message string `json:"message" form:"message" validate:"required"`
}

// Source describes where a submission came from. None of it is visitor input
// that gets validated, so it never appears in responses.
type Source struct {
	RequestID string
	ClientIP  string // already hashed
	UserAgent string
	Referrer  string
}

// Submission is a validated contact-form payload stamped at receipt.
type Submission struct {
	Name        string
	Email       string
	Message     string
	SubmittedAt time.Time
	Source      Source
}

func (p *Payload) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.Message = strings.TrimSpace(p.Message)
}

// NewValidator returns a validator with the emailshape rule registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	return v
}

// Validate trims the payload in place and reports ErrMissingFields before
// ErrInvalidEmail, whichever fields are at fault.
func Validate(v *validator.Validate, p *Payload) error {
	p.normalize()

	err := v.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return ErrMissingFields
		}
	}
	return ErrInvalidEmail
}
