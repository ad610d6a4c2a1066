// Package validation checks request input before it reaches a store.
//
// Each entity has an explicit function (Signup, Login, Profile,
// ChangePassword, Expense) that normalizes its input in place and returns
// nil or an *Error carrying the client-facing message plus per-field details.
// Rules are declared as struct tags and evaluated by go-playground/validator.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"pennytrail/internal/models"
)

// Client-facing messages.
const (
	MsgMissingFields    = "Please fill all fields"
	MsgInvalidEmail     = "Email is not valid"
	MsgWeakPassword     = "Password is not strong enough"
	MsgNameRequired     = "Name is required"
	MsgMissingExpense   = "Amount, category, date, and description are required"
	MsgInvalidCategory  = "Invalid category"
	MsgInvalidAmount    = "Amount must be greater than zero"
	MsgInvalidDate      = "Date is not valid"
	MsgExpenseIDMissing = "Expense ID is required"
	MsgInvalidExpenseID = "Invalid expense ID"
	MsgInvalidInput     = "Invalid input"
)

// MinPasswordChars is the shortest accepted password, counted in characters.
const MinPasswordChars = 8

// MaxPasswordBytes is the longest password bcrypt can hash without truncation.
const MaxPasswordBytes = 72

// DateLayout is the calendar-date form accepted for expense dates besides RFC 3339.
const DateLayout = time.DateOnly

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a structured validation failure. Message is safe to show clients.
type Error struct {
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

// NewError returns an *Error with a single message and no field details.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// IsValidationError reports whether err is or wraps an *Error.
func IsValidationError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report json names so field details match the request body.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
			return StrongPassword(fl.Field().String())
		})
		_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return models.Category(fl.Field().String()).Valid()
		})
		_ = validate.RegisterValidation("expensedate", func(fl validator.FieldLevel) bool {
			_, err := ParseDate(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// check runs the struct rules on s. Any missing field yields requiredMsg for
// that field; otherwise the first failing rule in field order decides the message.
func check(s any, requiredMsg func(field string) string) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(MsgInvalidInput)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		msg := ruleMessage(fe)
		if fe.Tag() == "required" {
			msg = requiredMsg(fe.Field())
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msg})
	}

	out.Message = out.Fields[0].Message
	for i, fe := range verrs {
		if fe.Tag() == "required" {
			out.Message = out.Fields[i].Message
			break
		}
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return MsgInvalidEmail
	case "strongpassword":
		return MsgWeakPassword
	case "category":
		return MsgInvalidCategory
	case "gt":
		return MsgInvalidAmount
	case "expensedate":
		return MsgInvalidDate
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return MsgInvalidInput
	}
}

func allFields(string) string { return MsgMissingFields }

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StrongPassword reports whether password has at least MinPasswordChars
// characters, at most MaxPasswordBytes bytes, and contains an ASCII lowercase
// letter, an ASCII uppercase letter, a digit, and a symbol. Letters outside
// ASCII count toward length only.
func StrongPassword(password string) bool {
	if utf8.RuneCountInString(password) < MinPasswordChars || len(password) > MaxPasswordBytes {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r < utf8.RuneSelf && (unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' '):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// ParseDate accepts an RFC 3339 timestamp or a YYYY-MM-DD date and returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ExpenseID checks a path id before it is used in a query.
func ExpenseID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewError(MsgExpenseIDMissing)
	}
	if _, err := uuid.Parse(id); err != nil {
		return NewError(MsgInvalidExpenseID)
	}
	return nil
}
