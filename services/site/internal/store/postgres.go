package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/streamsite/services/site/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS site_users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	library       JSONB NOT NULL DEFAULT '{}'::jsonb,
	history       JSONB NOT NULL DEFAULT '[]'::jsonb,
	progress      JSONB NOT NULL DEFAULT '{}'::jsonb,
	ratings       JSONB NOT NULL DEFAULT '{}'::jsonb,
	settings      JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE site_users ADD COLUMN IF NOT EXISTS settings JSONB NOT NULL DEFAULT '{}'::jsonb;
CREATE UNIQUE INDEX IF NOT EXISTS site_users_email_idx ON site_users (lower(email));
CREATE UNIQUE INDEX IF NOT EXISTS site_users_username_idx ON site_users (lower(username));
CREATE TABLE IF NOT EXISTS site_comments (
	id            TEXT PRIMARY KEY,
	media_type    TEXT NOT NULL,
	media_id      TEXT NOT NULL,
	parent_id     TEXT,
	author_id     TEXT NOT NULL,
	author_name   TEXT NOT NULL,
	author_rating INT,
	body          TEXT NOT NULL,
	is_spoiler    BOOLEAN NOT NULL DEFAULT false,
	likes         TEXT[] NOT NULL DEFAULT '{}',
	dislikes      TEXT[] NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS site_comments_media_idx ON site_comments (media_type, media_id);
`

const pgCommentCols = `id, media_type, media_id, parent_id, author_id, author_name, author_rating, body, is_spoiler, likes, dislikes, created_at`
const pgUserCols = `id, username, email, password_hash, library, history, progress, ratings, settings, created_at, updated_at`

// PostgresStore persists records in Postgres. User state lives in JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by Postgres.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) FindByMediaKey(ctx context.Context, mediaType, mediaID string) ([]domain.Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgCommentCols+` FROM site_comments WHERE media_type = $1 AND media_id = $2`,
		mediaType, mediaID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		c, err := scanPgComment(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgCommentCols+` FROM site_comments WHERE id = $1`, id)
	c, err := scanPgComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Comment{}, unavailable(err)
	}
	return c, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if c.Dislikes == nil {
		c.Dislikes = []string{}
	}
	const q = `INSERT INTO site_comments (` + pgCommentCols + `)
	           VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
	           RETURNING ` + pgCommentCols
	var created any
	if !c.CreatedAt.IsZero() {
		created = c.CreatedAt
	}
	row := s.pool.QueryRow(ctx, q, c.ID, c.MediaType, c.MediaID, c.ParentID, c.AuthorID, c.AuthorName,
		c.AuthorRating, c.Text, c.IsSpoiler, c.Likes, c.Dislikes, created)
	out, err := scanPgComment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Comment{}, fmt.Errorf("comment %s: %w", c.ID, domain.ErrConflict)
		}
		return domain.Comment{}, unavailable(err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateVotes(ctx context.Context, id string, likes, dislikes []string) (domain.Comment, error) {
	if likes == nil {
		likes = []string{}
	}
	if dislikes == nil {
		dislikes = []string{}
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE site_comments SET likes = $2, dislikes = $3 WHERE id = $1 RETURNING `+pgCommentCols,
		id, likes, dislikes)
	c, err := scanPgComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Comment{}, unavailable(err)
	}
	return c, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.queryUser(ctx, `SELECT `+pgUserCols+` FROM site_users WHERE id = $1`, id)
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.queryUser(ctx, `SELECT `+pgUserCols+` FROM site_users WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	state, err := initialState(u)
	if err != nil {
		return domain.User{}, err
	}
	const q = `INSERT INTO site_users (id, username, email, password_hash, library, history, progress, ratings, settings)
	           VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb)
	           RETURNING ` + pgUserCols
	row := s.pool.QueryRow(ctx, q, u.ID, u.Username, u.Email, u.PasswordHash,
		string(state[0]), string(state[1]), string(state[2]), string(state[3]), string(state[4]))
	out, err := scanPgUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("user %s: %w", u.Email, domain.ErrConflict)
		}
		return domain.User{}, unavailable(err)
	}
	return out, nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, id string, p UserPatch) (domain.User, error) {
	cols, vals, err := patchValues(p)
	if err != nil {
		return domain.User{}, err
	}
	sets := make([]string, 0, len(cols)+1)
	args := []any{id}
	for i, col := range cols {
		args = append(args, string(vals[i]))
		sets = append(sets, fmt.Sprintf("%s = $%d::jsonb", col, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	row := s.pool.QueryRow(ctx,
		`UPDATE site_users SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+pgUserCols, args...)
	u, err := scanPgUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, unavailable(err)
	}
	return u, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryUser(ctx context.Context, q, arg string) (domain.User, error) {
	u, err := scanPgUser(s.pool.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %s: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, unavailable(err)
	}
	return u, nil
}

func scanPgComment(row pgx.Row) (domain.Comment, error) {
	var c domain.Comment
	err := row.Scan(&c.ID, &c.MediaType, &c.MediaID, &c.ParentID, &c.AuthorID, &c.AuthorName,
		&c.AuthorRating, &c.Text, &c.IsSpoiler, &c.Likes, &c.Dislikes, &c.CreatedAt)
	if err != nil {
		return domain.Comment{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if c.Dislikes == nil {
		c.Dislikes = []string{}
	}
	return c, nil
}

func scanPgUser(row pgx.Row) (domain.User, error) {
	var (
		u                                             domain.User
		library, history, progress, ratings, settings []byte
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&library, &history, &progress, &ratings, &settings, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = u.CreatedAt.UTC(), u.UpdatedAt.UTC()
	if err := decodeState(&u, library, history, progress, ratings, settings); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
