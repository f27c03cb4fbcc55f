package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// MaxUserNameLength bounds the display name stored for a user
	MaxUserNameLength = 100
	// MaxEmailLength bounds the stored email address (RFC 5321 path limit)
	MaxEmailLength = 254
)

var validate = validator.New()

// User is the document stored in the users collection
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name" validate:"required,max=100"`
	Email     string             `bson:"email" json:"email" validate:"required,email,max=254"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// UserUpdate holds a partial update. Nil fields are left unchanged.
type UserUpdate struct {
	Name  *string `validate:"omitempty,max=100"`
	Email *string `validate:"omitempty,email,max=254"`
}

// IsEmpty reports whether the update changes nothing
func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil
}

// ValidationError reports the first invalid field of a user payload
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Normalize trims whitespace and lower-cases the email so the unique index
// compares addresses case-insensitively.
func (u *User) Normalize() {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
}

// Validate checks the user against its struct constraints
func (u *User) Validate() error {
	u.Normalize()
	return translateValidation(validate.Struct(u))
}

// Normalize applies the same normalization as User.Normalize to set fields
func (u *UserUpdate) Normalize() {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &email
	}
}

// Validate checks the set fields of the update
func (u *UserUpdate) Validate() error {
	if u.IsEmpty() {
		return &ValidationError{Field: "input", Message: "at least one field must be set"}
	}
	u.Normalize()
	if u.Name != nil && *u.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	return translateValidation(validate.Struct(u))
}

// translateValidation maps validator errors to a ValidationError for the first failing field
func translateValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "email":
		return &ValidationError{Field: field, Message: "must be a valid email address"}
	case "max":
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %s characters", fe.Param())}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("failed %q constraint", fe.Tag())}
	}
}
