// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and JSONB for the serialized
// history. The optimistic version check is a conditional UPDATE so a
// stale save never overwrites a newer conversation, regardless of how
// many processes share the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Embedding-Space/Alpha-AI/pkg/conversation"
	"github.com/Embedding-Space/Alpha-AI/pkg/storage"
)

// Store is a PostgreSQL-backed conversation store.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const conversationColumns = "id, model, system_prompt_ref, history, version, created_at, updated_at"

// Load retrieves a conversation by ID.
func (s *Store) Load(ctx context.Context, id string) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id)
	return scanConversation(row)
}

// LoadMostRecent retrieves the most recently updated conversation.
func (s *Store) LoadMostRecent(ctx context.Context) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+conversationColumns+" FROM conversations ORDER BY updated_at DESC LIMIT 1")
	return scanConversation(row)
}

// Save persists the conversation. A conversation without an ID is
// inserted at version 1 with a freshly assigned ID. An existing
// conversation is updated to its at-rest version + 1; if the row has
// already moved past conv.Version, Save returns storage.ErrConflict
// and leaves the row untouched.
func (s *Store) Save(ctx context.Context, conv *conversation.Conversation) (int64, error) {
	history, err := conversation.MarshalHistory(conv.History)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()

	if conv.ID == "" {
		id := storage.NewConversationID()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO conversations (id, model, system_prompt_ref, history, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $5)
		`, id, conv.Model, conv.SystemPromptRef, history, now)
		if err != nil {
			return 0, fmt.Errorf("inserting conversation: %w", err)
		}
		conv.ID = id
		conv.Version = 1
		conv.CreatedAt = now
		conv.UpdatedAt = now
		return 1, nil
	}

	// The version predicate makes the update atomic: a concurrent save
	// that already bumped the row past conv.Version matches zero rows.
	var newVersion int64
	err = s.pool.QueryRow(ctx, `
		UPDATE conversations
		SET model = $2, system_prompt_ref = $3, history = $4,
		    version = version + 1, updated_at = $5
		WHERE id = $1 AND version <= $6
		RETURNING version
	`, conv.ID, conv.Model, conv.SystemPromptRef, history, now, conv.Version).Scan(&newVersion)

	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing row from a stale version.
		var atRest int64
		probeErr := s.pool.QueryRow(ctx,
			"SELECT version FROM conversations WHERE id = $1", conv.ID).Scan(&atRest)
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		if probeErr != nil {
			return 0, fmt.Errorf("probing conversation version: %w", probeErr)
		}
		return 0, storage.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("updating conversation: %w", err)
	}

	conv.Version = newVersion
	conv.UpdatedAt = now
	return newVersion, nil
}

// Delete removes a conversation by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanConversation(row pgx.Row) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	var historyJSON []byte

	err := row.Scan(&conv.ID, &conv.Model, &conv.SystemPromptRef,
		&historyJSON, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.History, err = conversation.UnmarshalHistory(historyJSON)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
