package bus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types appended by the application.
const (
	TypeImportCompleted = "import.completed"
	TypeLikelyMatched   = "likely.matched"
	TypeBackupWritten   = "backup.written"
)

type Event struct {
	Seq       int64   `json:"seq"`
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	CreatedAt int64   `json:"created_at"`
	Payload   *string `json:"payload_json,omitempty"`
}

func Emit(ctx context.Context, db *sql.DB, typ string, payload any) error {
	if typ == "" {
		return fmt.Errorf("type is required")
	}
	now := time.Now().Unix()
	id := uuid.New().String()

	var payloadVal any
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		payloadVal = string(b)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO bus_events (id, type, created_at, payload_json)
		VALUES (?, ?, ?, ?)
	`, id, typ, now, payloadVal)
	if err != nil {
		return fmt.Errorf("failed to insert bus event: %w", err)
	}
	return nil
}

// List returns events with seq > afterSeq in order. typ filters by type
// when non-empty.
func List(ctx context.Context, db *sql.DB, afterSeq int64, limit int, typ string) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT seq, id, type, created_at, payload_json
		FROM bus_events
		WHERE seq > ? AND (? = '' OR type = ?)
		ORDER BY seq ASC
		LIMIT ?
	`, afterSeq, typ, typ, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bus events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload sql.NullString
		if err := rows.Scan(&e.Seq, &e.ID, &e.Type, &e.CreatedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan bus event: %w", err)
		}
		if payload.Valid {
			e.Payload = &payload.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating bus events: %w", err)
	}
	return out, nil
}
