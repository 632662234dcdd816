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

// TeamOptions are parameters for creating a team.
type TeamOptions struct {
	Name        string
	Description string
	ChannelIDs  []string
	LeaderID    string
}

// CreateTeam makes the leader the sole initial member.
func (e Engine) CreateTeam(ctx context.Context, opts TeamOptions) (domain.Team, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Team{}, invalid("name", "is required")
	}
	now := e.timestamp()
	t := domain.Team{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(opts.Description),
		LeaderID:    opts.LeaderID,
		MemberIDs:   []string{opts.LeaderID},
		ChannelIDs:  normalizeTags(opts.ChannelIDs),
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Team{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetUserTx(ctx, tx, opts.LeaderID); err != nil {
		return domain.Team{}, fmt.Errorf("leader %s: %w", opts.LeaderID, err)
	}
	if err := e.Repo.InsertTeamTx(ctx, tx, t); err != nil {
		return domain.Team{}, fmt.Errorf("insert team: %w", err)
	}
	if err := e.Repo.AddTeamMemberTx(ctx, tx, t.ID, opts.LeaderID, now); err != nil {
		return domain.Team{}, fmt.Errorf("add leader: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TeamCreated, "team", t.ID, opts.LeaderID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.Team{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Team{}, err
	}
	return t, nil
}

// AddTeamMember adds userID to the team. Only the leader or an admin may.
func (e Engine) AddTeamMember(ctx context.Context, actor domain.User, teamID, userID string) (domain.Team, error) {
	if userID == "" {
		return domain.Team{}, invalid("userId", "is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Team{}, err
	}
	defer tx.Rollback()
	team, err := e.Repo.GetTeamTx(ctx, tx, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	if err := auth.CanManageTeam(actor, team); err != nil {
		return domain.Team{}, err
	}
	if _, err := e.Repo.GetUserTx(ctx, tx, userID); err != nil {
		return domain.Team{}, fmt.Errorf("user %s: %w", userID, err)
	}
	if err := e.Repo.AddTeamMemberTx(ctx, tx, teamID, userID, e.timestamp()); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.Team{}, invalid("userId", "is already a member")
		}
		return domain.Team{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, events.TeamMemberAdded, "team", teamID, actor.ID, events.EventPayload{"user_id": userID}); err != nil {
		return domain.Team{}, err
	}
	team, err = e.Repo.GetTeamTx(ctx, tx, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

// RemoveTeamMember removes userID. The leader, an admin or the member
// themself may do so; the leader stays.
func (e Engine) RemoveTeamMember(ctx context.Context, actor domain.User, teamID, userID string) (domain.Team, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Team{}, err
	}
	defer tx.Rollback()
	team, err := e.Repo.GetTeamTx(ctx, tx, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	if actor.ID != userID {
		if err := auth.CanManageTeam(actor, team); err != nil {
			return domain.Team{}, err
		}
	}
	if userID == team.LeaderID {
		return domain.Team{}, invalid("userId", "the team leader cannot be removed")
	}
	if !team.HasMember(userID) {
		return domain.Team{}, fmt.Errorf("member %s: %w", userID, repo.ErrNotFound)
	}
	if err := e.Repo.RemoveTeamMemberTx(ctx, tx, teamID, userID); err != nil {
		return domain.Team{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, events.TeamMemberRemoved, "team", teamID, actor.ID, events.EventPayload{"user_id": userID}); err != nil {
		return domain.Team{}, err
	}
	team, err = e.Repo.GetTeamTx(ctx, tx, teamID)
	if err != nil {
		return domain.Team{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}
