package validation

import (
	"strings"

	"pennytrail/internal/models"
)

// SignupInput is the body of a signup request.
type SignupInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,strongpassword"`
}

// Signup checks presence, then email format, then password strength.
func Signup(in *SignupInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	return check(in, allFields)
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks presence and email format. Strength is not checked on login.
func Login(in *LoginInput) error {
	in.Email = NormalizeEmail(in.Email)
	return check(in, allFields)
}

// ProfileInput is the body of a profile update.
type ProfileInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

// Profile checks a profile update and normalizes its name and email.
func Profile(in *ProfileInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	return check(in, func(field string) string {
		if field == "name" {
			return MsgNameRequired
		}
		return MsgInvalidEmail
	})
}

// ChangePasswordInput is the body of a password change.
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ChangePassword checks presence only. The new password's strength is
// checked with NewPassword once the old password has been verified.
func ChangePassword(in *ChangePasswordInput) error {
	return check(in, allFields)
}

// NewPassword rejects a password that is not strong enough.
func NewPassword(password string) error {
	if !StrongPassword(password) {
		return &Error{
			Message: MsgWeakPassword,
			Fields:  []FieldError{{Field: "newPassword", Message: MsgWeakPassword}},
		}
	}
	return nil
}

// ExpenseInput is the body of an expense create or update.
type ExpenseInput struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Category    string  `json:"category" validate:"required,category"`
	Date        string  `json:"date" validate:"required,expensedate"`
	Description string  `json:"description" validate:"required,max=500"`
}

// Expense checks an expense body and returns it as a model owned by userID.
func Expense(in *ExpenseInput, userID string) (*models.Expense, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	if err := check(in, func(string) string { return MsgMissingExpense }); err != nil {
		return nil, err
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, NewError(MsgInvalidDate)
	}
	return &models.Expense{
		UserID:      userID,
		Amount:      in.Amount,
		Category:    models.Category(in.Category),
		Date:        date,
		Description: in.Description,
	}, nil
}
