package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
	"github.com/nexuscore/agentd/internal/monitor"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// PostgresConfig holds connection pool tuning for PostgresStore, grounded on
// the teacher's jobs.CockroachStore (CockroachDB speaks the Postgres wire
// protocol, so the same lib/pq driver and pooling knobs apply unchanged).
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgresConfig returns sensible pool defaults.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// PostgresStore implements Store against a sessions/messages/metrics schema.
// Schema (assumed pre-migrated):
//
//	sessions(id TEXT PRIMARY KEY, channel TEXT, mode TEXT, metadata JSONB,
//	         created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
//	session_messages(session_id TEXT, seq INT, role TEXT, content TEXT,
//	                 tool_calls JSONB, tool_call_id TEXT, created_at TIMESTAMPTZ)
//	session_metrics(session_id TEXT, trace_id TEXT, summary JSONB, recorded_at TIMESTAMPTZ)
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStoreFromDSN opens and pings a connection, mirroring the
// teacher's NewCockroachStoreFromDSN.
func NewPostgresStoreFromDSN(dsn string, config *PostgresConfig) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultPostgresConfig()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) CreateSession(ctx context.Context, channel chatmodel.Channel, mode string) (*chatmodel.Session, error) {
	now := time.Now()
	session := &chatmodel.Session{
		ID:        uuid.NewString(),
		Channel:   channel,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, channel, mode, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, session.ID, string(session.Channel), session.Mode, metadata, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*chatmodel.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel, mode, metadata, created_at, updated_at
		FROM sessions WHERE id = $1
	`, id)

	var (
		session      chatmodel.Session
		channel      string
		metadataJSON []byte
	)
	if err := row.Scan(&session.ID, &channel, &session.Mode, &metadataJSON, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	session.Channel = chatmodel.Channel(channel)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return &session, nil
}

func (s *PostgresStore) loadMessages(ctx context.Context, sessionID string) ([]chatmodel.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id
		FROM session_messages WHERE session_id = $1 ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []chatmodel.Message
	for rows.Next() {
		var (
			msg           chatmodel.Message
			role          string
			toolCallsJSON []byte
			toolCallID    sql.NullString
		)
		if err := rows.Scan(&role, &msg.Content, &toolCallsJSON, &toolCallID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = chatmodel.Role(role)
		if toolCallID.Valid {
			msg.ToolCallID = toolCallID.String
		}
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return messages, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID string, msg chatmodel.Message) error {
	toolCallsJSON, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM session_messages WHERE session_id = $1
	`, sessionID).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_messages (session_id, seq, role, content, tool_calls, tool_call_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sessionID, seq, string(msg.Role), msg.Content, toolCallsJSON, nullableString(msg.ToolCallID), time.Now()); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = $2 WHERE id = $1`, sessionID, time.Now()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) RecordMetric(ctx context.Context, sessionID string, summary monitor.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_metrics (session_id, trace_id, summary, recorded_at)
		VALUES ($1,$2,$3,$4)
	`, sessionID, summary.TraceID, payload, time.Now())
	if err != nil {
		return fmt.Errorf("record metric: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*chatmodel.Session, error) {
	query := `SELECT id, channel, mode, metadata, created_at, updated_at FROM sessions`
	args := []any{}
	if opts.Channel != "" {
		args = append(args, string(opts.Channel))
		query += fmt.Sprintf(" WHERE channel = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*chatmodel.Session
	for rows.Next() {
		var (
			session      chatmodel.Session
			channel      string
			metadataJSON []byte
		)
		if err := rows.Scan(&session.ID, &channel, &session.Mode, &metadataJSON, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.Channel = chatmodel.Channel(channel)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
