package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a calendar date without a time component.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64
		FirstName    string
		LastName     string
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	Category struct {
		ID     int64
		Name   string
		UserID int64
	}

	// Expense carries a denormalized category name rather than a foreign
	// key to Category. A recorded expense keeps its label even if the
	// category is later deleted or was never created.
	Expense struct {
		ID        int64
		Category  string
		Amount    Money
		ImageName string
		Image     []byte
		Date      Date
		UserID    int64
	}

	Session struct {
		Token     string
		UserID    int64
		CreatedAt time.Time
		// ExpiresAt zero means the session never expires until logout.
		ExpiresAt time.Time
	}
)

var (
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrEmptyName           = errors.New("empty category name")
	ErrNotFoundOrForbidden = errors.New("not found or not yours")
	ErrMissingField        = errors.New("missing required field")
	ErrNotFound            = errors.New("not found")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// NewDate creates a Date fixed at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates now to its UTC calendar date.
func Today(now time.Time) Date {
	y, m, d := now.UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String renders the date as YYYY-MM-DD, the format stored in sqlite.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// YearMonth renders the YYYY-MM label used by the monthly aggregations.
// Lexicographic order on these labels coincides with chronological order.
func (d Date) YearMonth() string {
	return d.Format("2006-01")
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.FirstName) == "" ||
		strings.TrimSpace(u.LastName) == "" ||
		strings.TrimSpace(u.Username) == "" {
		return ErrMissingField
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return ErrMissingField
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}
