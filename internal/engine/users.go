package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"honourus/internal/domain"
	"honourus/internal/engine/auth"
	"honourus/internal/events"
	"honourus/internal/repo"
)

const minPasswordLength = 8

// SignUpOptions are parameters for registering a user.
type SignUpOptions struct {
	Email      string
	Password   string
	Name       string
	Department string
	Role       string
}

// SignUp registers a member or manager. Admins are created with CreateUser.
func (e Engine) SignUp(ctx context.Context, opts SignUpOptions) (domain.User, error) {
	if opts.Role == "" {
		opts.Role = domain.RoleMember
	}
	if opts.Role != domain.RoleMember && opts.Role != domain.RoleManager {
		return domain.User{}, invalid("role", "must be member or manager")
	}
	return e.CreateUser(ctx, opts)
}

// CreateUser registers a user with any valid role.
func (e Engine) CreateUser(ctx context.Context, opts SignUpOptions) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	name := strings.TrimSpace(opts.Name)
	switch {
	case email == "":
		return domain.User{}, invalid("email", "is required")
	case !strings.Contains(email, "@"):
		return domain.User{}, invalid("email", "must be an email address")
	case len(opts.Password) < minPasswordLength:
		return domain.User{}, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	case name == "":
		return domain.User{}, invalid("name", "is required")
	}
	role := opts.Role
	if role == "" {
		role = domain.RoleMember
	}
	if !auth.ValidRole(role) {
		return domain.User{}, invalid("role", "must be member, manager or admin")
	}
	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := e.timestamp()
	u := domain.User{
		ID:           newID(),
		Email:        email,
		Name:         name,
		Role:         role,
		Department:   strings.TrimSpace(opts.Department),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUserTx(ctx, tx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.User{}, invalid("email", "is already registered")
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.UserSignedUp, "user", u.ID, u.ID, events.EventPayload{"role": u.Role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SignIn checks credentials and returns the user.
func (e Engine) SignIn(ctx context.Context, email, password string) (domain.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.User{}, invalid("", "email and password are required")
	}
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, auth.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := auth.ComparePassword(u.PasswordHash, password); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// UpdateProfile applies a profile change requested by actor.
func (e Engine) UpdateProfile(ctx context.Context, actor domain.User, targetID string, upd repo.UserUpdate) (domain.User, error) {
	if err := auth.CanEditProfile(actor, targetID); err != nil {
		return domain.User{}, err
	}
	if upd.Role != nil {
		if err := auth.CanChangeRole(actor); err != nil {
			return domain.User{}, err
		}
		if !auth.ValidRole(*upd.Role) {
			return domain.User{}, invalid("role", "must be member, manager or admin")
		}
	}
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return domain.User{}, invalid("name", "must not be empty")
		}
		upd.Name = &trimmed
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetUserTx(ctx, tx, targetID); err != nil {
		return domain.User{}, err
	}
	if err := e.Repo.UpdateUserTx(ctx, tx, targetID, upd, e.timestamp()); err != nil {
		return domain.User{}, err
	}
	payload := events.EventPayload{}
	if upd.Role != nil {
		payload["role"] = *upd.Role
	}
	if err := e.eventWriter().Append(ctx, tx, events.UserUpdated, "user", targetID, actor.ID, payload); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUserTx(ctx, tx, targetID)
	if err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// CreditDrift is a user whose stored counter differs from the ledger sum.
type CreditDrift struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Stored  int64  `json:"stored"`
	Ledger  int64  `json:"ledger"`
	Applied bool   `json:"applied"`
}

// ReconcileCredits compares every user's counter with the ledger and
// optionally resets drifting counters to the ledger sum. A repair recomputes
// the sum at write time, so awards committed after the scan are kept.
func (e Engine) ReconcileCredits(ctx context.Context, apply bool) ([]CreditDrift, error) {
	balances, err := e.Repo.CreditBalances(ctx)
	if err != nil {
		return nil, err
	}
	drifts := []CreditDrift{}
	for _, b := range balances {
		if b.Stored == b.Ledger {
			continue
		}
		d := CreditDrift{UserID: b.UserID, Name: b.Name, Stored: b.Stored, Ledger: b.Ledger}
		if apply {
			applied, err := e.Repo.RepairCredits(ctx, b.UserID, e.timestamp())
			if err != nil {
				return nil, fmt.Errorf("reconcile %s: %w", b.UserID, err)
			}
			d.Applied = applied
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}
