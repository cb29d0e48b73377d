package storage

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"testing"
	"time"

	"potrosnja/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(s.T(), err, "failed to open test database")
	s.repo = repo
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) mustCreateUser(username string) core.User {
	u, err := s.repo.CreateUser(s.ctx, core.User{
		FirstName:    "Test",
		LastName:     "User",
		Username:     username,
		PasswordHash: "x",
	})
	require.NoError(s.T(), err)
	return u
}

func (s *RepositoryTestSuite) mustCreateExpense(userID int64, category string, cents int64, date core.Date) int64 {
	id, err := s.repo.CreateExpense(s.ctx, core.Expense{
		Category:  category,
		Amount:    core.Money{Cents: cents},
		ImageName: "logo.png",
		Image:     []byte{0x89},
		Date:      date,
		UserID:    userID,
	})
	require.NoError(s.T(), err)
	return id
}

func (s *RepositoryTestSuite) TestCreateUserDuplicateUsername() {
	s.mustCreateUser("ana")
	_, err := s.repo.CreateUser(s.ctx, core.User{
		FirstName: "Druga", LastName: "Ana", Username: "ana", PasswordHash: "y",
	})
	assert.ErrorIs(s.T(), err, core.ErrDuplicateUsername)
}

func (s *RepositoryTestSuite) TestGetUserByUsernameNotFound() {
	_, err := s.repo.GetUserByUsername(s.ctx, "nobody")
	assert.ErrorIs(s.T(), err, core.ErrUserNotFound)
}

func (s *RepositoryTestSuite) TestSessionRoundTrip() {
	u := s.mustCreateUser("ana")

	require.NoError(s.T(), s.repo.CreateSession(s.ctx, "tok1", u.ID, time.Time{}))
	got, err := s.repo.GetSessionUser(s.ctx, "tok1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, got.ID)
	assert.Equal(s.T(), "ana", got.Username)

	require.NoError(s.T(), s.repo.DeleteSession(s.ctx, "tok1"))
	_, err = s.repo.GetSessionUser(s.ctx, "tok1")
	assert.ErrorIs(s.T(), err, core.ErrUnauthenticated)
}

func (s *RepositoryTestSuite) TestExpiredSessionRejected() {
	u := s.mustCreateUser("ana")
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, "old", u.ID, time.Now().Add(-time.Hour)))

	_, err := s.repo.GetSessionUser(s.ctx, "old")
	assert.ErrorIs(s.T(), err, core.ErrUnauthenticated)

	n, err := s.repo.DeleteExpiredSessions(s.ctx)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, n)
}

func (s *RepositoryTestSuite) TestSessionWithoutExpiryNeverSwept() {
	u := s.mustCreateUser("ana")
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, "forever", u.ID, time.Time{}))

	n, err := s.repo.DeleteExpiredSessions(s.ctx)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 0, n)

	_, err = s.repo.GetSessionUser(s.ctx, "forever")
	assert.NoError(s.T(), err)
}

func (s *RepositoryTestSuite) TestListCategoriesScopedToOwner() {
	ana := s.mustCreateUser("ana")
	ivo := s.mustCreateUser("ivo")

	for _, name := range []string{"Hrana", "Prijevoz"} {
		_, err := s.repo.CreateCategory(s.ctx, ana.ID, name)
		require.NoError(s.T(), err)
	}
	_, err := s.repo.CreateCategory(s.ctx, ivo.ID, "Stanarina")
	require.NoError(s.T(), err)

	cats, err := s.repo.ListCategories(s.ctx, ana.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), cats, 2)
	for _, c := range cats {
		assert.Equal(s.T(), ana.ID, c.UserID)
	}
	assert.Equal(s.T(), "Hrana", cats[0].Name, "insertion order expected")
}

func (s *RepositoryTestSuite) TestDuplicateCategoryNamesAllowed() {
	ana := s.mustCreateUser("ana")
	_, err := s.repo.CreateCategory(s.ctx, ana.ID, "Hrana")
	require.NoError(s.T(), err)
	_, err = s.repo.CreateCategory(s.ctx, ana.ID, "Hrana")
	assert.NoError(s.T(), err, "category names are not unique")
}

func (s *RepositoryTestSuite) TestDeleteCategoryOfOtherUserIsNoOp() {
	ana := s.mustCreateUser("ana")
	ivo := s.mustCreateUser("ivo")
	cat, err := s.repo.CreateCategory(s.ctx, ana.ID, "Hrana")
	require.NoError(s.T(), err)

	err = s.repo.DeleteCategory(s.ctx, ivo.ID, cat.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFoundOrForbidden)

	cats, err := s.repo.ListCategories(s.ctx, ana.ID)
	require.NoError(s.T(), err)
	assert.Len(s.T(), cats, 1, "owner's category must be untouched")
}

func (s *RepositoryTestSuite) TestDeleteCategoryByOwner() {
	ana := s.mustCreateUser("ana")
	cat, err := s.repo.CreateCategory(s.ctx, ana.ID, "Hrana")
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.repo.DeleteCategory(s.ctx, ana.ID, cat.ID))
	cats, err := s.repo.ListCategories(s.ctx, ana.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), cats)
}

func (s *RepositoryTestSuite) TestCreateExpenseRejectsUnknownUser() {
	_, err := s.repo.CreateExpense(s.ctx, core.Expense{
		Category: "Hrana",
		Amount:   core.Money{Cents: 100},
		Date:     core.NewDate(2024, 3, 15),
		UserID:   999,
	})
	assert.Error(s.T(), err, "foreign key to users must be enforced")
}

func (s *RepositoryTestSuite) TestGetExpenseImage() {
	ana := s.mustCreateUser("ana")
	payload := []byte("fake-jpeg-bytes")
	id, err := s.repo.CreateExpense(s.ctx, core.Expense{
		Category:  "Hrana",
		Amount:    core.Money{Cents: 4250},
		ImageName: "racun.jpg",
		Image:     payload,
		Date:      core.NewDate(2024, 3, 15),
		UserID:    ana.ID,
	})
	require.NoError(s.T(), err)

	name, data, err := s.repo.GetExpenseImage(s.ctx, id)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "racun.jpg", name)
	assert.Equal(s.T(), payload, data)

	_, _, err = s.repo.GetExpenseImage(s.ctx, id+100)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestMonthSummaryEmpty() {
	ana := s.mustCreateUser("ana")
	sum, err := s.repo.MonthSummary(s.ctx, ana.ID, "2024-03")
	require.NoError(s.T(), err)
	assert.Zero(s.T(), sum.Total.Cents)
	assert.Zero(s.T(), sum.Max.Cents)
}

func (s *RepositoryTestSuite) TestMonthSummary() {
	ana := s.mustCreateUser("ana")
	s.mustCreateExpense(ana.ID, "Hrana", 4250, core.NewDate(2024, 3, 15))
	s.mustCreateExpense(ana.ID, "Prijevoz", 1000, core.NewDate(2024, 3, 20))
	// Different month and different user must not count.
	s.mustCreateExpense(ana.ID, "Hrana", 99900, core.NewDate(2024, 2, 28))
	ivo := s.mustCreateUser("ivo")
	s.mustCreateExpense(ivo.ID, "Hrana", 77700, core.NewDate(2024, 3, 1))

	sum, err := s.repo.MonthSummary(s.ctx, ana.ID, "2024-03")
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 5250, sum.Total.Cents)
	assert.EqualValues(s.T(), 4250, sum.Max.Cents)
}

func (s *RepositoryTestSuite) TestTotalsByCategoryIsAPartition() {
	ana := s.mustCreateUser("ana")
	amounts := map[string][]int64{
		"Hrana":    {4250, 1050},
		"Prijevoz": {1000},
		"Ostalo":   {300, 200, 100},
	}
	var want int64
	for cat, cents := range amounts {
		for _, c := range cents {
			s.mustCreateExpense(ana.ID, cat, c, core.NewDate(2024, 3, 10))
			want += c
		}
	}

	totals, err := s.repo.TotalsByCategory(s.ctx, ana.ID, "")
	require.NoError(s.T(), err)
	require.Len(s.T(), totals, 3, "every expense lands in exactly one group")

	var got int64
	for _, t := range totals {
		got += t.Total.Cents
	}
	assert.Equal(s.T(), want, got, "group totals must sum to the overall total")
}

func (s *RepositoryTestSuite) TestTotalsByCategoryMonthFilter() {
	ana := s.mustCreateUser("ana")
	s.mustCreateExpense(ana.ID, "Hrana", 4250, core.NewDate(2024, 3, 15))
	s.mustCreateExpense(ana.ID, "Hrana", 1000, core.NewDate(2024, 2, 15))

	totals, err := s.repo.TotalsByCategory(s.ctx, ana.ID, "2024-03")
	require.NoError(s.T(), err)
	require.Len(s.T(), totals, 1)
	assert.EqualValues(s.T(), 4250, totals[0].Total.Cents)

	empty, err := s.repo.TotalsByCategory(s.ctx, ana.ID, "2020-01")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), empty, "empty month is an empty result, not an error")
}

func (s *RepositoryTestSuite) TestTotalsByMonthSortedLabels() {
	ana := s.mustCreateUser("ana")
	s.mustCreateExpense(ana.ID, "Hrana", 100, core.NewDate(2024, 11, 1))
	s.mustCreateExpense(ana.ID, "Hrana", 200, core.NewDate(2024, 2, 1))
	s.mustCreateExpense(ana.ID, "Hrana", 300, core.NewDate(2023, 12, 31))
	s.mustCreateExpense(ana.ID, "Hrana", 400, core.NewDate(2024, 2, 20))

	totals, err := s.repo.TotalsByMonth(s.ctx, ana.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), totals, 3)

	labelRe := regexp.MustCompile(`^\d{4}-\d{2}$`)
	labels := make([]string, len(totals))
	for i, t := range totals {
		assert.Regexp(s.T(), labelRe, t.Month)
		labels[i] = t.Month
	}
	assert.True(s.T(), sort.StringsAreSorted(labels), "labels must ascend: %v", labels)
	assert.Equal(s.T(), []string{"2023-12", "2024-02", "2024-11"}, labels)
	assert.EqualValues(s.T(), 600, totals[1].Total.Cents)
}

func (s *RepositoryTestSuite) TestTopExpenses() {
	ana := s.mustCreateUser("ana")
	s.mustCreateExpense(ana.ID, "A", 1000, core.NewDate(2024, 3, 1))
	big := s.mustCreateExpense(ana.ID, "A", 3000, core.NewDate(2024, 3, 2))

	top, err := s.repo.TopExpenses(s.ctx, ana.ID, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), top, 1)
	assert.Equal(s.T(), big, top[0].ID)
	assert.EqualValues(s.T(), 3000, top[0].Amount.Cents)
}

func (s *RepositoryTestSuite) TestTopExpensesStableTiebreak() {
	ana := s.mustCreateUser("ana")
	first := s.mustCreateExpense(ana.ID, "A", 1000, core.NewDate(2024, 3, 1))
	s.mustCreateExpense(ana.ID, "B", 1000, core.NewDate(2024, 3, 2))

	for i := 0; i < 3; i++ {
		top, err := s.repo.TopExpenses(s.ctx, ana.ID, 1)
		require.NoError(s.T(), err)
		require.Len(s.T(), top, 1)
		assert.Equal(s.T(), first, top[0].ID, "tiebreak must be stable across calls")
	}
}

func (s *RepositoryTestSuite) TestRecentExpenses() {
	ana := s.mustCreateUser("ana")
	s.mustCreateExpense(ana.ID, "A", 100, core.NewDate(2024, 1, 1))
	s.mustCreateExpense(ana.ID, "B", 200, core.NewDate(2024, 3, 1))
	newest := s.mustCreateExpense(ana.ID, "C", 300, core.NewDate(2024, 3, 5))

	recent, err := s.repo.RecentExpenses(s.ctx, ana.ID, 2)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 2)
	assert.Equal(s.T(), newest, recent[0].ID)
	assert.Equal(s.T(), "B", recent[1].Category)
}

func (s *RepositoryTestSuite) TestExpensesForMonth() {
	ana := s.mustCreateUser("ana")
	s.mustCreateExpense(ana.ID, "Hrana", 4250, core.NewDate(2024, 3, 15))
	s.mustCreateExpense(ana.ID, "Hrana", 1000, core.NewDate(2024, 4, 1))

	march, err := s.repo.ExpensesForMonth(s.ctx, ana.ID, "2024-03")
	require.NoError(s.T(), err)
	require.Len(s.T(), march, 1)
	assert.Equal(s.T(), "2024-03-15", march[0].Date.String())

	none, err := s.repo.ExpensesForMonth(s.ctx, ana.ID, "2019-01")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), none)
}

func (s *RepositoryTestSuite) TestGetExpenseNotFound() {
	_, err := s.repo.GetExpense(s.ctx, 12345)
	assert.True(s.T(), errors.Is(err, core.ErrNotFound))
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
