// Package services holds the application logic between the HTTP layer
// and storage: input validation, defaults and event publication.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"potrosnja/internal/amqp"
	"potrosnja/internal/core"
	"potrosnja/internal/storage"
)

// defaultListSize is how many rows the top and recent listings show when
// the caller does not say otherwise.
const defaultListSize = 5

// ExpenseService orchestrates expenses, categories and statistics across
// SQLite and AMQP.
type ExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client

	// placeholder receipt used when an expense is recorded without one
	defaultImageName  string
	defaultImageBytes []byte
}

func NewExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, defaultImageName string, defaultImageBytes []byte) *ExpenseService {
	return &ExpenseService{
		storage:           storage,
		amqpClient:        amqpClient,
		defaultImageName:  defaultImageName,
		defaultImageBytes: defaultImageBytes,
	}
}

// AddExpense validates and saves a new expense for the user. The amount
// is a decimal string ("42.50" or "42,50"); the date is stamped with the
// current UTC calendar day. When no receipt is supplied the placeholder
// image is stored instead. On success an event is published; publish
// failures are logged and never fail the request.
func (s *ExpenseService) AddExpense(ctx context.Context, userID int64, category, amount, imageName string, image []byte) (core.Expense, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.Expense{}, core.ErrMissingField
	}
	if strings.TrimSpace(amount) == "" {
		return core.Expense{}, core.ErrMissingField
	}

	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse amount: %w", err)
	}

	if len(image) == 0 {
		imageName = s.defaultImageName
		image = s.defaultImageBytes
	}

	e := core.Expense{
		Category:  category,
		Amount:    core.Money{Cents: cents},
		ImageName: imageName,
		Image:     image,
		Date:      core.Today(time.Now()),
		UserID:    userID,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	e.ID, err = s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishExpenseRecorded(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to publish expense event",
				"id", e.ID, "error", err)
		}
	}

	return e, nil
}

// GetExpense returns a single expense without its receipt payload.
func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

// GetExpenseImage returns the receipt filename and bytes for an expense.
func (s *ExpenseService) GetExpenseImage(ctx context.Context, id int64) (string, []byte, error) {
	return s.storage.GetExpenseImage(ctx, id)
}

// AddCategory creates a category for the user. Blank names report
// core.ErrEmptyName. Duplicate names are allowed.
func (s *ExpenseService) AddCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name), UserID: userID}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	return s.storage.CreateCategory(ctx, userID, c.Name)
}

func (s *ExpenseService) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	return s.storage.ListCategories(ctx, userID)
}

// DeleteCategory removes the user's category. Expenses already recorded
// under its name are untouched.
func (s *ExpenseService) DeleteCategory(ctx context.Context, userID, categoryID int64) error {
	return s.storage.DeleteCategory(ctx, userID, categoryID)
}

// CurrentMonthSummary reports the total and the largest single expense
// for the user's current UTC month.
func (s *ExpenseService) CurrentMonthSummary(ctx context.Context, userID int64) (core.MonthSummary, error) {
	return s.storage.MonthSummary(ctx, userID, core.Today(time.Now()).YearMonth())
}

// TotalsByCategory sums the user's expenses per category label. An empty
// yearMonth covers all time.
func (s *ExpenseService) TotalsByCategory(ctx context.Context, userID int64, yearMonth string) ([]core.CategoryTotal, error) {
	return s.storage.TotalsByCategory(ctx, userID, yearMonth)
}

// CurrentMonthTotalsByCategory sums the user's expenses per category for
// the current UTC month.
func (s *ExpenseService) CurrentMonthTotalsByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	return s.storage.TotalsByCategory(ctx, userID, core.Today(time.Now()).YearMonth())
}

// TotalsByMonth sums the user's expenses per YYYY-MM month, oldest first.
func (s *ExpenseService) TotalsByMonth(ctx context.Context, userID int64) ([]core.MonthTotal, error) {
	return s.storage.TotalsByMonth(ctx, userID)
}

// TopExpenses returns the user's n largest expenses; n <= 0 falls back
// to the default listing size.
func (s *ExpenseService) TopExpenses(ctx context.Context, userID int64, n int) ([]core.Expense, error) {
	if n <= 0 {
		n = defaultListSize
	}
	return s.storage.TopExpenses(ctx, userID, n)
}

// RecentExpenses returns the user's n most recent expenses; n <= 0 falls
// back to the default listing size.
func (s *ExpenseService) RecentExpenses(ctx context.Context, userID int64, n int) ([]core.Expense, error) {
	if n <= 0 {
		n = defaultListSize
	}
	return s.storage.RecentExpenses(ctx, userID, n)
}

// ExpensesForMonth lists the user's expenses in the given YYYY-MM month.
func (s *ExpenseService) ExpensesForMonth(ctx context.Context, userID int64, yearMonth string) ([]core.Expense, error) {
	return s.storage.ExpensesForMonth(ctx, userID, yearMonth)
}

// Close closes storage and the AMQP connection.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
