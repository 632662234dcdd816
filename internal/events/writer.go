package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"honourus/internal/db"
)

const (
	TaskCreated          = "task.created"
	TaskUpdated          = "task.updated"
	TaskCompleted        = "task.completed"
	CreditsAwarded       = "credits.awarded"
	RecognitionSent      = "recognition.sent"
	TeamCreated          = "team.created"
	TeamMemberAdded      = "team.member_added"
	TeamMemberRemoved    = "team.member_removed"
	UserSignedUp         = "user.signed_up"
	UserUpdated          = "user.updated"
	IntegrationConnected = "integration.connected"
)

// Writer appends activity events inside the caller's transaction.
type Writer struct {
	Dialect db.Dialect
	Now     func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, w.Dialect.Rebind(`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`),
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
