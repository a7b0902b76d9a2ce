package queries

import "context"

type CreateTeamParams struct {
	Name     string
	TeamType string
}

const createTeam = `INSERT INTO teams (name, team_type) VALUES (?, ?)`

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	result, err := q.db.ExecContext(ctx, createTeam, arg.Name, arg.TeamType)
	if err != nil {
		return Team{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Team{}, err
	}
	return q.GetTeamByID(ctx, id)
}

const getTeamByID = `SELECT t.id, t.name, t.team_type, tt.priority, tt.advance_booking_days, t.created_at
FROM teams t
JOIN team_types tt ON tt.name = t.team_type
WHERE t.id = ?`

func (q *Queries) GetTeamByID(ctx context.Context, id int64) (Team, error) {
	row := q.db.QueryRowContext(ctx, getTeamByID, id)
	var i Team
	err := row.Scan(&i.ID, &i.Name, &i.TeamType, &i.Priority, &i.AdvanceBookingDays, &i.CreatedAt)
	return i, err
}

type UpdateTeamNameParams struct {
	ID   int64
	Name string
}

const updateTeamName = `UPDATE teams SET name = ? WHERE id = ?`

func (q *Queries) UpdateTeamName(ctx context.Context, arg UpdateTeamNameParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTeamName, arg.Name, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTeam = `DELETE FROM teams WHERE id = ?`

func (q *Queries) DeleteTeam(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTeam, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countTeams = `SELECT COUNT(1) FROM teams`

func (q *Queries) CountTeams(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countTeams).Scan(&count)
	return count, err
}
