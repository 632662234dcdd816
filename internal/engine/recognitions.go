package engine

import (
	"context"
	"fmt"
	"strings"

	"honourus/internal/domain"
	"honourus/internal/events"
)

// RecognitionOptions are parameters for sending a recognition.
type RecognitionOptions struct {
	FromUserID string
	ToUserID   string
	Message    string
	Type       string
	Credits    *int64
}

// SendRecognition records the recognition and credits the recipient in one
// transaction.
func (e Engine) SendRecognition(ctx context.Context, opts RecognitionOptions) (domain.Recognition, error) {
	msg := strings.TrimSpace(opts.Message)
	if msg == "" {
		return domain.Recognition{}, invalid("message", "is required")
	}
	if opts.ToUserID == "" {
		return domain.Recognition{}, invalid("toUserId", "is required")
	}
	pol := e.policy()
	if opts.ToUserID == opts.FromUserID && !pol.Recognition.AllowSelf {
		return domain.Recognition{}, invalid("toUserId", "cannot recognize yourself")
	}
	credits, ok := pol.RecognitionCredits(opts.Type)
	if !ok {
		return domain.Recognition{}, invalid("type", "is not a known recognition type")
	}
	if opts.Credits != nil {
		credits = *opts.Credits
	}
	if credits < 0 || credits > pol.Recognition.MaxCredits {
		return domain.Recognition{}, invalid("credits", fmt.Sprintf("must be between 0 and %d", pol.Recognition.MaxCredits))
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Recognition{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetUserTx(ctx, tx, opts.ToUserID); err != nil {
		return domain.Recognition{}, fmt.Errorf("recipient %s: %w", opts.ToUserID, err)
	}
	rec := domain.Recognition{
		ID:         newID(),
		FromUserID: opts.FromUserID,
		ToUserID:   opts.ToUserID,
		Message:    msg,
		Credits:    credits,
		Type:       opts.Type,
		CreatedAt:  e.timestamp(),
	}
	if err := e.Repo.InsertRecognitionTx(ctx, tx, rec); err != nil {
		return domain.Recognition{}, fmt.Errorf("insert recognition: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.RecognitionSent, "recognition", rec.ID, rec.FromUserID, events.EventPayload{
		"to_user_id": rec.ToUserID,
		"type":       rec.Type,
		"credits":    rec.Credits,
	}); err != nil {
		return domain.Recognition{}, err
	}
	if _, err := e.awardCredits(ctx, tx, rec.ToUserID, rec.Credits, domain.SourceRecognition, rec.ID, rec.FromUserID); err != nil {
		return domain.Recognition{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Recognition{}, err
	}
	return rec, nil
}
