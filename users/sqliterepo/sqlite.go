package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-blog-server/users"

	_ "modernc.org/sqlite"
)

type Repo struct {
	db *sql.DB
}

var _ users.UserRepo = (*Repo)(nil)

func Open(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	nickname TEXT NOT NULL,
	email TEXT,
	role TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	provider_subject_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_provider_identity
	ON users (provider, provider_subject_id) WHERE provider <> '';
`,
	`
CREATE INDEX IF NOT EXISTS users_nickname ON users (nickname);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

const userColumns = `id, username, password_hash, nickname, email, role, provider, provider_subject_id, created_at`

func (r *Repo) Create(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, user.ID, user.Username, user.PasswordHash, user.Nickname, nullIfEmpty(user.Email), user.Role,
		user.Provider, user.ProviderSubjectID, user.DateJoined.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrUserExists
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *Repo) GetByProvider(ctx context.Context, provider, providerSubjectID string) (*users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_subject_id = ?
`, provider, providerSubjectID))
}

// GetByNickname returns the earliest account using nickname. Nicknames are
// only unique among accounts created through the users service.
func (r *Repo) GetByNickname(ctx context.Context, nickname string) (*users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
SELECT `+userColumns+` FROM users WHERE nickname = ? ORDER BY created_at LIMIT 1
`, nickname))
}

func (r *Repo) Update(ctx context.Context, user *users.User) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET nickname = ?, password_hash = ?, email = ?, role = ? WHERE id = ?
`, user.Nickname, user.PasswordHash, nullIfEmpty(user.Email), user.Role, user.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return users.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	var (
		u         users.User
		email     sql.NullString
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname, &email, &u.Role, &u.Provider, &u.ProviderSubjectID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.DateJoined = time.Unix(createdAt, 0)
	return &u, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
