package repo

import (
	"context"
	"database/sql"

	"honourus/internal/db"
	"honourus/internal/domain"
)

func (r Repo) InsertTeamTx(ctx context.Context, tx *sql.Tx, t domain.Team) error {
	_, err := r.exec(ctx, tx, `INSERT INTO teams(id,name,description,leader_id,channel_ids_json,created_at) VALUES (?,?,?,?,?,?)`,
		t.ID, t.Name, t.Description, t.LeaderID, encodeStrings(t.ChannelIDs), t.CreatedAt)
	return err
}

// AddTeamMemberTx inserts a membership; an existing membership yields ErrDuplicate.
func (r Repo) AddTeamMemberTx(ctx context.Context, tx *sql.Tx, teamID, userID, joinedAt string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO team_members(team_id,user_id,joined_at) VALUES (?,?,?)`, teamID, userID, joinedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r Repo) RemoveTeamMemberTx(ctx context.Context, tx *sql.Tx, teamID, userID string) error {
	res, err := r.exec(ctx, tx, `DELETE FROM team_members WHERE team_id=? AND user_id=?`, teamID, userID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r Repo) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return r.GetTeamTx(ctx, nil, id)
}

func (r Repo) GetTeamTx(ctx context.Context, tx *sql.Tx, id string) (domain.Team, error) {
	var (
		t        domain.Team
		channels string
	)
	err := r.queryRow(ctx, tx, `SELECT id,name,description,leader_id,channel_ids_json,created_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.LeaderID, &channels, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.ChannelIDs = decodeStrings(channels)
	members, err := r.teamMembers(ctx, tx, []string{t.ID})
	if err != nil {
		return t, err
	}
	t.MemberIDs = nonNil(members[t.ID])
	return t, nil
}

func (r Repo) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.query(ctx, nil, `SELECT id,name,description,leader_id,channel_ids_json,created_at FROM teams ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	var (
		teams []domain.Team
		ids   []string
	)
	for rows.Next() {
		var (
			t        domain.Team
			channels string
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.LeaderID, &channels, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		t.ChannelIDs = decodeStrings(channels)
		teams = append(teams, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	members, err := r.teamMembers(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Team, 0, len(teams))
	for _, t := range teams {
		t.MemberIDs = nonNil(members[t.ID])
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) teamMembers(ctx context.Context, tx *sql.Tx, teamIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	if len(teamIDs) == 0 {
		return out, nil
	}
	q := `SELECT team_id,user_id FROM team_members WHERE team_id IN (` + placeholders(len(teamIDs)) + `) ORDER BY joined_at ASC, user_id ASC`
	args := make([]any, 0, len(teamIDs))
	for _, id := range teamIDs {
		args = append(args, id)
	}
	rows, err := r.query(ctx, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var teamID, userID string
		if err := rows.Scan(&teamID, &userID); err != nil {
			return nil, err
		}
		out[teamID] = append(out[teamID], userID)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
