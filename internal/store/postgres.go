package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres stores conversations in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies pending migrations and returns how many ran.
func (s *Postgres) Migrate(ctx context.Context) (int, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("migrations: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("migrate up: %w", err)
	}
	return len(results), nil
}

func (s *Postgres) Close() { s.pool.Close() }

// mapErr turns driver errors into store sentinels. Malformed uuids and
// foreign key violations both mean the referenced row does not exist.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "22P02", "23503":
			return ErrNotFound
		case "23514":
			return ErrInvalid
		}
	}
	return err
}

const conversationCols = `id::text, title, created_at, updated_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, mapErr(err)
}

func (s *Postgres) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx,
		`INSERT INTO conversations (title) VALUES ($1) RETURNING `+conversationCols, title))
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM conversations WHERE id = $1`, id))
}

func (s *Postgres) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+conversationCols+` FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Conversation, error) {
		return scanConversation(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

func (s *Postgres) UpdateConversation(ctx context.Context, id, title string) (Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx,
		`UPDATE conversations SET title = $2, updated_at = clock_timestamp() WHERE id = $1 RETURNING `+conversationCols,
		id, title))
}

func (s *Postgres) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err = mapErr(err); errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

const messageCols = `id::text, conversation_id::text, role, content, metadata, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	var meta []byte
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &meta, &m.CreatedAt)
	if len(meta) > 0 {
		m.Metadata = meta
	}
	return m, mapErr(err)
}

func (s *Postgres) CreateMessage(ctx context.Context, in NewMessage) (Message, error) {
	if err := validate(in); err != nil {
		return Message{}, err
	}
	var meta any
	if len(in.Metadata) > 0 {
		meta = string(in.Metadata)
	}
	var msg Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		msg, err = scanMessage(tx.QueryRow(ctx,
			`INSERT INTO messages (conversation_id, role, content, metadata)
			 VALUES ($1, $2, $3, $4::jsonb) RETURNING `+messageCols,
			in.ConversationID, in.Role, in.Content, meta))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, in.ConversationID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return Message{}, mapErr(err)
	}
	return msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM messages WHERE conversation_id = $1 ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Message, error) {
		return scanMessage(r)
	})
	if errors.Is(mapErr(err), ErrNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (s *Postgres) DeleteMessage(ctx context.Context, conversationID, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND conversation_id = $2`, id, conversationID)
	if err = mapErr(err); errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
