package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "relaybot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

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
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, p := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetOwner(ctx context.Context) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM owner WHERE k = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapClosed(err)
	}
	return id, id != 0, nil
}

func (s *sqliteStore) SetOwner(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO owner(k, user_id) VALUES(1, ?) ON CONFLICT(k) DO UPDATE SET user_id = excluded.user_id`, id)
	return wrapClosed(err)
}

func (s *sqliteStore) SaveUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, first_at) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Format(time.RFC3339Nano))
	return wrapClosed(err)
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]int64, error) {
	return s.ids(ctx, `SELECT id FROM users ORDER BY id`)
}

func (s *sqliteStore) IsAdmin(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapClosed(err)
	}
	return true, nil
}

func (s *sqliteStore) AddAdmin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO admins(id) VALUES(?) ON CONFLICT(id) DO NOTHING`, id)
	return wrapClosed(err)
}

func (s *sqliteStore) RemoveAdmin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE id = ?`, id)
	return wrapClosed(err)
}

func (s *sqliteStore) ListAdmins(ctx context.Context) ([]int64, error) {
	return s.ids(ctx, `SELECT id FROM admins ORDER BY id`)
}

func (s *sqliteStore) ids(ctx context.Context, query string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapClosed(err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListChats(ctx context.Context) (map[string]ChatEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, chat_id, link FROM chats`)
	if err != nil {
		return nil, wrapClosed(err)
	}
	defer rows.Close()
	out := map[string]ChatEntry{}
	for rows.Next() {
		var e ChatEntry
		if err := rows.Scan(&e.Name, &e.ChatID, &e.Link); err != nil {
			return nil, err
		}
		out[e.Name] = e
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetChat(ctx context.Context, e ChatEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats(name, chat_id, link) VALUES(?,?,?)
		 ON CONFLICT(name) DO UPDATE SET chat_id = excluded.chat_id, link = excluded.link`,
		e.Name, e.ChatID, e.Link)
	return wrapClosed(err)
}

func (s *sqliteStore) DeleteChat(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE name = ?`, name)
	if err != nil {
		return wrapClosed(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) SaveMessage(ctx context.Context, id int, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(id, text) VALUES(?,?) ON CONFLICT(id) DO UPDATE SET text = excluded.text`, id, text)
	return wrapClosed(err)
}

func (s *sqliteStore) AllMessages(ctx context.Context) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text FROM messages`)
	if err != nil {
		return nil, wrapClosed(err)
	}
	defer rows.Close()
	out := map[int]string{}
	for rows.Next() {
		var (
			id   int
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		out[id] = text
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, action, target, ok, fail, err) VALUES(?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.ActorID, e.Action, nullStr(e.Target), e.OK, e.Fail, nullStr(e.Error),
	)
	return wrapClosed(err)
}

// Compact reclaims free pages left behind by deletes and overwrites.
func (s *sqliteStore) Compact(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return wrapClosed(err)
}

func wrapClosed(err error) error {
	if err != nil && strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

func nullStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
