package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

const reminderCols = `id, owner_id, owner_name, message, at, chat_id, sent, recurring, series_key, created_at`

func openSQLite(cfg Config, log logx.Logger) (*sqliteStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log, pruneEvery: 200}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- reminders ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(sc rowScanner) (Reminder, error) {
	var (
		r              Reminder
		at, created    int64
		sent, repeated int
		series         sql.NullString
	)
	err := sc.Scan(&r.ID, &r.OwnerID, &r.OwnerName, &r.Message, &at, &r.ChatID, &sent, &repeated, &series, &created)
	if err != nil {
		return Reminder{}, err
	}
	r.At = time.UnixMilli(at).UTC()
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.Sent = sent != 0
	r.Recurring = repeated != 0
	r.SeriesKey = series.String
	return r, nil
}

func (s *sqliteStore) queryReminders(ctx context.Context, q string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
}

func insertReminder(ctx context.Context, ex execer, r *Reminder) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO reminders(owner_id, owner_name, message, at, chat_id, sent, recurring, series_key, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.OwnerID, r.OwnerName, r.Message, r.At.UnixMilli(), r.ChatID,
		boolInt(r.Sent), boolInt(r.Recurring), nullStr(r.SeriesKey), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	r.At = r.At.UTC()
	return err
}

func (s *sqliteStore) CreateReminder(ctx context.Context, r Reminder) (Reminder, error) {
	if err := insertReminder(ctx, s.db, &r); err != nil {
		return Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return r, nil
}

func (s *sqliteStore) CreateReminders(ctx context.Context, rs []Reminder) (int, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	for i := range rs {
		r := rs[i]
		if err := insertReminder(ctx, tx, &r); err != nil {
			return 0, fmt.Errorf("create reminders: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rs), nil
}

func (s *sqliteStore) GetReminder(ctx context.Context, ownerID string, id int64) (Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = ? AND owner_id = ?`, id, ownerID)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *sqliteStore) Due(ctx context.Context, now time.Time) ([]Reminder, error) {
	return s.queryReminders(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE sent = 0 AND at <= ? ORDER BY at ASC, id ASC`,
		now.UnixMilli())
}

func (s *sqliteStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryReminders(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE owner_id = ? ORDER BY at DESC, id DESC LIMIT ?`,
		ownerID, limit)
}

func (s *sqliteStore) CountForOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders WHERE owner_id = ?`, ownerID).Scan(&n)
	return n, err
}

func (s *sqliteStore) LastSent(ctx context.Context, ownerID string) (Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE owner_id = ? AND sent = 1 ORDER BY at DESC, id DESC LIMIT 1`,
		ownerID)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Reminder{}, ErrNotFound
	}
	return r, err
}

func (s *sqliteStore) MarkSent(ctx context.Context, id int64) error {
	return s.execOne(ctx, `UPDATE reminders SET sent = 1 WHERE id = ?`, id)
}

func (s *sqliteStore) UpdateTime(ctx context.Context, id int64, at time.Time) error {
	return s.execOne(ctx, `UPDATE reminders SET at = ?, sent = 0 WHERE id = ?`, at.UnixMilli(), id)
}

func (s *sqliteStore) execOne(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) execCount(ctx context.Context, q string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) DeleteReminder(ctx context.Context, ownerID string, id int64) (bool, error) {
	n, err := s.execCount(ctx, `DELETE FROM reminders WHERE id = ? AND owner_id = ?`, id, ownerID)
	return n > 0, err
}

func (s *sqliteStore) DeleteAllForOwner(ctx context.Context, ownerID string) (int, error) {
	return s.execCount(ctx, `DELETE FROM reminders WHERE owner_id = ?`, ownerID)
}

func (s *sqliteStore) CountUnsentInSeries(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminders WHERE series_key = ? AND sent = 0`, key).Scan(&n)
	return n, err
}

func (s *sqliteStore) DeleteUnsentInSeries(ctx context.Context, key string) (int, error) {
	return s.execCount(ctx, `DELETE FROM reminders WHERE series_key = ? AND sent = 0`, key)
}

func (s *sqliteStore) CleanupSent(ctx context.Context, cutoff time.Time) (int, error) {
	return s.execCount(ctx, `DELETE FROM reminders WHERE sent = 1 AND at < ?`, cutoff.UnixMilli())
}

// ---- series ----

func insertSeries(ctx context.Context, ex execer, sr Series) error {
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO series(key, owner_id, owner_name, chat_id, name, frequency, weekdays, times, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		sr.Key, sr.OwnerID, sr.OwnerName, sr.ChatID, sr.Name, sr.Frequency,
		joinWeekdays(sr.Weekdays), strings.Join(sr.Times, ","), sr.CreatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) CreateSeries(ctx context.Context, sr Series) error {
	if err := insertSeries(ctx, s.db, sr); err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	return nil
}

func (s *sqliteStore) CreateSeriesBatch(ctx context.Context, sr Series, rs []Reminder) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM series WHERE key = ?`, sr.Key).Scan(&n); err != nil {
		return 0, fmt.Errorf("create series batch: %w", err)
	}
	if n > 0 {
		return 0, fmt.Errorf("create series batch %s: %w", sr.Key, ErrExists)
	}
	if err := insertSeries(ctx, tx, sr); err != nil {
		return 0, fmt.Errorf("create series batch: %w", err)
	}
	for i := range rs {
		r := rs[i]
		if err := insertReminder(ctx, tx, &r); err != nil {
			return 0, fmt.Errorf("create series batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rs), nil
}

const seriesCols = `s.key, s.owner_id, s.owner_name, s.chat_id, s.name, s.frequency, s.weekdays, s.times, s.created_at`

func scanSeries(sc rowScanner, extra ...any) (Series, error) {
	var (
		sr           Series
		days, times  string
		createdMilli int64
	)
	dest := append([]any{&sr.Key, &sr.OwnerID, &sr.OwnerName, &sr.ChatID, &sr.Name, &sr.Frequency, &days, &times, &createdMilli}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return Series{}, err
	}
	sr.Weekdays = splitWeekdays(days)
	if times != "" {
		sr.Times = strings.Split(times, ",")
	}
	sr.CreatedAt = time.UnixMilli(createdMilli).UTC()
	return sr, nil
}

func (s *sqliteStore) GetSeries(ctx context.Context, key string) (Series, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesCols+` FROM series s WHERE s.key = ?`, key)
	sr, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Series{}, ErrNotFound
	}
	return sr, err
}

func (s *sqliteStore) SeriesLow(ctx context.Context, threshold int) ([]SeriesStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+seriesCols+`, COUNT(r.id) AS remaining, MAX(r.at)
		 FROM series s JOIN reminders r ON r.series_key = s.key AND r.sent = 0
		 GROUP BY s.key
		 HAVING remaining BETWEEN 1 AND ?
		 ORDER BY s.created_at ASC, s.key ASC`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SeriesStatus
	for rows.Next() {
		var (
			st   SeriesStatus
			last int64
		)
		sr, err := scanSeries(rows, &st.Remaining, &last)
		if err != nil {
			return nil, err
		}
		st.Series = sr
		st.LastAt = time.UnixMilli(last).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

// ---- users ----

func (s *sqliteStore) TouchUser(ctx context.Context, u User) error {
	if u.LastActivity.IsZero() {
		u.LastActivity = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, name, timezone, last_activity) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE users.name END,
		   timezone = CASE WHEN excluded.timezone <> '' THEN excluded.timezone ELSE users.timezone END,
		   last_activity = excluded.last_activity`,
		u.ID, u.Name, u.Timezone, u.LastActivity.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) GetUser(ctx context.Context, id string) (User, error) {
	var (
		u    User
		last int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, timezone, last_activity FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Timezone, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.LastActivity = time.UnixMilli(last).UTC()
	return u, nil
}

// ---- dedup ----

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until = excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.pruneExpired(pctx); perr != nil {
			s.log.Debug("dedup prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) pruneExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, time.Now().UnixMilli())
	return err
}

// ---- helpers ----

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func splitWeekdays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var out []time.Weekday
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}
