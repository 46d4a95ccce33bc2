package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/example/streamsite/services/site/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL DEFAULT '',
	library       TEXT NOT NULL DEFAULT '{}',
	history       TEXT NOT NULL DEFAULT '[]',
	progress      TEXT NOT NULL DEFAULT '{}',
	ratings       TEXT NOT NULL DEFAULT '{}',
	settings      TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
	id            TEXT PRIMARY KEY,
	media_type    TEXT NOT NULL,
	media_id      TEXT NOT NULL,
	parent_id     TEXT,
	author_id     TEXT NOT NULL,
	author_name   TEXT NOT NULL,
	author_rating INTEGER,
	body          TEXT NOT NULL,
	is_spoiler    INTEGER NOT NULL DEFAULT 0,
	likes         TEXT NOT NULL DEFAULT '[]',
	dislikes      TEXT NOT NULL DEFAULT '[]',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_media_idx ON comments (media_type, media_id);
`

const sqliteCommentCols = `id, media_type, media_id, parent_id, author_id, author_name, author_rating, body, is_spoiler, likes, dislikes, created_at`
const sqliteUserCols = `id, username, email, password_hash, library, history, progress, ratings, settings, created_at, updated_at`

// sqliteMigrations upgrade databases created before a column existed.
var sqliteMigrations = []string{
	`ALTER TABLE users ADD COLUMN settings TEXT NOT NULL DEFAULT '{}'`,
}

// SQLiteStore persists records in an embedded SQLite file (pure Go driver).
// Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	for _, m := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, m); err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindByMediaKey(ctx context.Context, mediaType, mediaID string) ([]domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteCommentCols+` FROM comments WHERE media_type = ? AND media_id = ?`,
		mediaType, mediaID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		c, err := scanSQLiteComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *SQLiteStore) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteCommentCols+` FROM comments WHERE id = ?`, id)
	c, err := scanSQLiteComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	return c, err
}

func (s *SQLiteStore) Insert(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	var rating sql.NullInt64
	if c.AuthorRating != nil {
		rating = sql.NullInt64{Int64: int64(*c.AuthorRating), Valid: true}
	}
	var parent sql.NullString
	if c.ParentID != nil {
		parent = sql.NullString{String: *c.ParentID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (`+sqliteCommentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MediaType, c.MediaID, parent, c.AuthorID, c.AuthorName, rating, c.Text,
		c.IsSpoiler, string(encodeIDs(c.Likes)), string(encodeIDs(c.Dislikes)), c.CreatedAt.UnixNano())
	if err != nil {
		if isSQLiteUnique(err) {
			return domain.Comment{}, fmt.Errorf("comment %s: %w", c.ID, domain.ErrConflict)
		}
		return domain.Comment{}, unavailable(err)
	}
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if c.Dislikes == nil {
		c.Dislikes = []string{}
	}
	return c, nil
}

func (s *SQLiteStore) UpdateVotes(ctx context.Context, id string, likes, dislikes []string) (domain.Comment, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET likes = ?, dislikes = ? WHERE id = ?`,
		string(encodeIDs(likes)), string(encodeIDs(dislikes)), id)
	if err != nil {
		return domain.Comment{}, unavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	return s.GetComment(ctx, id)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.queryUser(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.queryUser(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	state, err := initialState(u)
	if err != nil {
		return domain.User{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (`+sqliteUserCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
		string(state[0]), string(state[1]), string(state[2]), string(state[3]), string(state[4]),
		now.UnixNano(), now.UnixNano())
	if err != nil {
		if isSQLiteUnique(err) {
			return domain.User{}, fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
		}
		return domain.User{}, unavailable(err)
	}
	u.EnsureMaps()
	return u, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, id string, p UserPatch) (domain.User, error) {
	cols, vals, err := patchValues(p)
	if err != nil {
		return domain.User{}, err
	}
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, string(vals[i]))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().UnixNano(), id)

	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return domain.User{}, unavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

func (s *SQLiteStore) queryUser(ctx context.Context, q string, arg string) (domain.User, error) {
	var (
		u                                             domain.User
		library, history, progress, ratings, settings string
		createdAt, updatedAt                          int64
	)
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&library, &history, &progress, &ratings, &settings, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, unavailable(err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	u.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if err := decodeState(&u, []byte(library), []byte(history), []byte(progress), []byte(ratings), []byte(settings)); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteComment(row rowScanner) (domain.Comment, error) {
	var (
		c               domain.Comment
		parent          sql.NullString
		rating          sql.NullInt64
		likes, dislikes string
		createdAt       int64
	)
	err := row.Scan(&c.ID, &c.MediaType, &c.MediaID, &parent, &c.AuthorID, &c.AuthorName, &rating,
		&c.Text, &c.IsSpoiler, &likes, &dislikes, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Comment{}, err
		}
		return domain.Comment{}, unavailable(err)
	}
	if parent.Valid {
		p := parent.String
		c.ParentID = &p
	}
	if rating.Valid {
		r := int(rating.Int64)
		c.AuthorRating = &r
	}
	if c.Likes, err = decodeIDs([]byte(likes)); err != nil {
		return domain.Comment{}, err
	}
	if c.Dislikes, err = decodeIDs([]byte(dislikes)); err != nil {
		return domain.Comment{}, err
	}
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	return c, nil
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}
