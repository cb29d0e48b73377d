package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"potrosnja/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection keeps sqlite writes serialized and makes
	// :memory: databases usable across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ---- users ----

// CreateUser inserts a new user. The username is checked first so callers
// get core.ErrDuplicateUsername instead of a raw constraint error; the
// unique index backs the check against races.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", u.Username,
	).Scan(&exists)
	if err != nil {
		return core.User{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return core.User{}, core.ErrDuplicateUsername
	}

	u.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (first_name, last_name, username, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.FirstName, u.LastName, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, core.ErrDuplicateUsername
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}

	u.ID, err = res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ---- sessions ----

// CreateSession stores a session token. A zero expiresAt is stored as NULL
// and means the session never expires until logout.
func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	var exp any
	if !expiresAt.IsZero() {
		exp = expiresAt.UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		token, userID, time.Now().UTC(), exp,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a session token to its user. Unknown and expired
// tokens both report core.ErrUnauthenticated.
func (r *SQLiteRepository) GetSessionUser(ctx context.Context, token string) (core.User, error) {
	var (
		u   core.User
		exp sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.first_name, u.last_name, u.username, u.password_hash, u.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ?`, token,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.PasswordHash, &u.CreatedAt, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUnauthenticated
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get session user: %w", err)
	}
	if exp.Valid && exp.Time.Before(time.Now()) {
		return core.User{}, core.ErrUnauthenticated
	}
	return u, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry. Sessions with
// no expiry are never touched.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions count: %w", err)
	}
	return n, nil
}

// ---- categories ----

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID int64, name string) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, user_id) VALUES (?, ?)", name, userID)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return core.Category{ID: id, Name: name, UserID: userID}, nil
}

// ListCategories returns the user's categories in insertion order.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, user_id FROM categories WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// DeleteCategory deletes a category only when it belongs to the user.
// A missing category and a foreign one are indistinguishable on purpose:
// both report core.ErrNotFoundOrForbidden.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, categoryID int64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM categories WHERE id = ? AND user_id = ?", categoryID, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category count: %w", err)
	}
	if n == 0 {
		return core.ErrNotFoundOrForbidden
	}
	return nil
}

// ---- expenses ----

// CreateExpense inserts an expense inside a transaction. On any failure the
// transaction is rolled back and no partial row is retained.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin expense tx: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO expenses (category, amount_cents, image_name, image, date, user_id) VALUES (?, ?, ?, ?, ?, ?)",
		e.Category, e.Amount.Cents, e.ImageName, e.Image, e.Date.String(), e.UserID,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("expense id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user_id", e.UserID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())
	return id, nil
}

// GetExpense fetches a single expense without its image payload.
// No ownership check: the historical app exposed receipts to any
// authenticated user by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var (
		e       core.Expense
		dateStr string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, category, amount_cents, image_name, date, user_id FROM expenses WHERE id = ?", id,
	).Scan(&e.ID, &e.Category, &e.Amount.Cents, &e.ImageName, &dateStr, &e.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	if e.Date, err = core.ParseDate(dateStr); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense date: %w", err)
	}
	return e, nil
}

// GetExpenseImage returns the stored receipt filename and bytes.
func (r *SQLiteRepository) GetExpenseImage(ctx context.Context, id int64) (string, []byte, error) {
	var (
		name string
		data []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT image_name, image FROM expenses WHERE id = ?", id,
	).Scan(&name, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, core.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("get expense image: %w", err)
	}
	return name, data, nil
}

// MonthSummary computes the total and the largest single amount for the
// user's expenses in the given YYYY-MM month. Both are zero for an empty
// month.
func (r *SQLiteRepository) MonthSummary(ctx context.Context, userID int64, yearMonth string) (core.MonthSummary, error) {
	var s core.MonthSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0), COALESCE(MAX(amount_cents), 0)
		FROM expenses
		WHERE user_id = ? AND strftime('%Y-%m', date) = ?`,
		userID, yearMonth,
	).Scan(&s.Total.Cents, &s.Max.Cents)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("month summary: %w", err)
	}
	return s, nil
}

// TotalsByCategory groups the user's expenses by category label and sums
// the amounts. An empty yearMonth covers all time; otherwise only the given
// YYYY-MM month is counted. An empty result is an empty slice, not an error.
func (r *SQLiteRepository) TotalsByCategory(ctx context.Context, userID int64, yearMonth string) ([]core.CategoryTotal, error) {
	query := `
		SELECT category, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ?`
	args := []any{userID}
	if yearMonth != "" {
		query += " AND strftime('%Y-%m', date) = ?"
		args = append(args, yearMonth)
	}
	query += " GROUP BY category"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var t core.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TotalsByMonth groups all of the user's expenses by YYYY-MM label, ordered
// by label ascending. Lexicographic order coincides with chronological
// order for these labels.
func (r *SQLiteRepository) TotalsByMonth(ctx context.Context, userID int64) ([]core.MonthTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', date) AS month, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ?
		GROUP BY month
		ORDER BY month`, userID)
	if err != nil {
		return nil, fmt.Errorf("totals by month: %w", err)
	}
	defer rows.Close()

	var totals []core.MonthTotal
	for rows.Next() {
		var t core.MonthTotal
		if err := rows.Scan(&t.Month, &t.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TopExpenses returns the user's n largest expenses by amount. Ties break
// on ascending id so repeated calls are stable.
func (r *SQLiteRepository) TopExpenses(ctx context.Context, userID int64, n int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, amount_cents, image_name, date, user_id
		FROM expenses
		WHERE user_id = ?
		ORDER BY amount_cents DESC, id
		LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("top expenses: %w", err)
	}
	return scanExpenses(rows)
}

// RecentExpenses returns the user's n most recent expenses by date. Ties
// break on descending id, newest insert first.
func (r *SQLiteRepository) RecentExpenses(ctx context.Context, userID int64, n int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, amount_cents, image_name, date, user_id
		FROM expenses
		WHERE user_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}
	return scanExpenses(rows)
}

// ExpensesForMonth returns all of the user's expenses in the given YYYY-MM
// month. An empty month yields an empty slice.
func (r *SQLiteRepository) ExpensesForMonth(ctx context.Context, userID int64, yearMonth string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, amount_cents, image_name, date, user_id
		FROM expenses
		WHERE user_id = ? AND strftime('%Y-%m', date) = ?
		ORDER BY date, id`, userID, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("expenses for month: %w", err)
	}
	return scanExpenses(rows)
}

// scanExpenses drains a listing query. Image payloads are intentionally not
// selected by the listing queries; fetch them via GetExpenseImage.
func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			dateStr string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount.Cents, &e.ImageName, &dateStr, &e.UserID); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse expense date: %w", err)
		}
		e.Date = d
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}
