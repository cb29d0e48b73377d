package services

import (
	"context"
	"testing"
	"time"

	"potrosnja/internal/core"
	"potrosnja/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placeholderPNG = []byte{0x89, 0x50, 0x4e, 0x47}

func newTestService(t *testing.T) (*ExpenseService, int64) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	u, err := repo.CreateUser(context.Background(), core.User{
		FirstName: "Ana", LastName: "Anic", Username: "ana", PasswordHash: "x",
	})
	require.NoError(t, err)

	return NewExpenseService(repo, nil, "logo.png", placeholderPNG), u.ID
}

func TestAddExpense(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	e, err := svc.AddExpense(ctx, userID, "Hrana", "42.50", "", nil)
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.EqualValues(t, 4250, e.Amount.Cents)
	assert.Equal(t, "Hrana", e.Category)
	assert.Equal(t, core.Today(time.Now()), e.Date, "expense is stamped with today")

	sum, err := svc.CurrentMonthSummary(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 4250, sum.Total.Cents)
	assert.EqualValues(t, 4250, sum.Max.Cents)
}

func TestAddExpenseCommaDecimal(t *testing.T) {
	svc, userID := newTestService(t)

	e, err := svc.AddExpense(context.Background(), userID, "Hrana", "42,50", "", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4250, e.Amount.Cents)
}

func TestAddExpenseValidation(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name             string
		category, amount string
		wantErr          error
	}{
		{"missing category", "", "10.00", core.ErrMissingField},
		{"blank category", "   ", "10.00", core.ErrMissingField},
		{"missing amount", "Hrana", "", core.ErrMissingField},
		{"zero amount", "Hrana", "0", core.ErrInvalidAmount},
		{"negative amount", "Hrana", "-5.00", core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddExpense(ctx, userID, tt.category, tt.amount, "", nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("garbage amount", func(t *testing.T) {
		_, err := svc.AddExpense(ctx, userID, "Hrana", "abc", "", nil)
		assert.Error(t, err)
	})
}

func TestAddExpensePlaceholderImage(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	e, err := svc.AddExpense(ctx, userID, "Hrana", "10.00", "", nil)
	require.NoError(t, err)

	name, data, err := svc.GetExpenseImage(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "logo.png", name)
	assert.Equal(t, placeholderPNG, data)
}

func TestAddExpenseSuppliedImage(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	receipt := []byte("jpeg-bytes")
	e, err := svc.AddExpense(ctx, userID, "Hrana", "10.00", "racun.jpg", receipt)
	require.NoError(t, err)

	name, data, err := svc.GetExpenseImage(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "racun.jpg", name)
	assert.Equal(t, receipt, data)
}

func TestAddCategory(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddCategory(ctx, userID, "  ")
	assert.ErrorIs(t, err, core.ErrEmptyName)

	c, err := svc.AddCategory(ctx, userID, " Hrana ")
	require.NoError(t, err)
	assert.Equal(t, "Hrana", c.Name, "name is trimmed before save")

	cats, err := svc.ListCategories(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
}

func TestDeleteCategoryKeepsExpenses(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	c, err := svc.AddCategory(ctx, userID, "Hrana")
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, userID, "Hrana", "10.00", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, userID, c.ID))

	// The recorded expense keeps its label after the category is gone.
	totals, err := svc.TotalsByCategory(ctx, userID, "")
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "Hrana", totals[0].Category)
}

func TestTopExpensesDefaultSize(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := svc.AddExpense(ctx, userID, "Hrana", "10.00", "", nil)
		require.NoError(t, err)
	}

	top, err := svc.TopExpenses(ctx, userID, 0)
	require.NoError(t, err)
	assert.Len(t, top, defaultListSize)

	recent, err := svc.RecentExpenses(ctx, userID, -1)
	require.NoError(t, err)
	assert.Len(t, recent, defaultListSize)
}

func TestTopExpensesReturnsLargest(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	for _, amount := range []string{"10.00", "30.00", "20.00"} {
		_, err := svc.AddExpense(ctx, userID, "Hrana", amount, "", nil)
		require.NoError(t, err)
	}

	top, err := svc.TopExpenses(ctx, userID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.EqualValues(t, 3000, top[0].Amount.Cents)
}

func TestCurrentMonthSummaryEmpty(t *testing.T) {
	svc, userID := newTestService(t)

	sum, err := svc.CurrentMonthSummary(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, sum.Total.Cents)
	assert.Zero(t, sum.Max.Cents)
}

func TestExpensesForMonth(t *testing.T) {
	svc, userID := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddExpense(ctx, userID, "Hrana", "10.00", "", nil)
	require.NoError(t, err)

	month := core.Today(time.Now()).YearMonth()
	list, err := svc.ExpensesForMonth(ctx, userID, month)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	none, err := svc.ExpensesForMonth(ctx, userID, "1999-01")
	require.NoError(t, err)
	assert.Empty(t, none)
}
