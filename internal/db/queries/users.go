package queries

import "context"

type CreateUserParams struct {
	Name  string
	Email string
	Role  string
}

const createUser = `INSERT INTO users (name, email, role) VALUES (?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	result, err := q.db.ExecContext(ctx, createUser, arg.Name, arg.Email, arg.Role)
	if err != nil {
		return User{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

const getUserByID = `SELECT id, name, email, role, created_at FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.CreatedAt)
	return i, err
}

const getUserByName = `SELECT id, name, email, role, created_at FROM users WHERE name = ?`

func (q *Queries) GetUserByName(ctx context.Context, name string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByName, name)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.CreatedAt)
	return i, err
}

const listTeamsForUser = `SELECT t.id, t.name, t.team_type, tt.priority, tt.advance_booking_days, t.created_at
FROM teams t
JOIN team_members tm ON tm.team_id = t.id
JOIN team_types tt ON tt.name = t.team_type
WHERE tm.user_id = ?
ORDER BY t.id`

func (q *Queries) ListTeamsForUser(ctx context.Context, userID int64) ([]Team, error) {
	rows, err := q.db.QueryContext(ctx, listTeamsForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Team, 0)
	for rows.Next() {
		var i Team
		if err := rows.Scan(&i.ID, &i.Name, &i.TeamType, &i.Priority, &i.AdvanceBookingDays, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type TeamMemberParams struct {
	TeamID int64
	UserID int64
}

const addTeamMember = `INSERT INTO team_members (team_id, user_id) VALUES (?, ?)
ON CONFLICT (team_id, user_id) DO NOTHING`

func (q *Queries) AddTeamMember(ctx context.Context, arg TeamMemberParams) error {
	_, err := q.db.ExecContext(ctx, addTeamMember, arg.TeamID, arg.UserID)
	return err
}

const removeTeamMember = `DELETE FROM team_members WHERE team_id = ? AND user_id = ?`

func (q *Queries) RemoveTeamMember(ctx context.Context, arg TeamMemberParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, removeTeamMember, arg.TeamID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const isTeamMember = `SELECT COUNT(1) FROM team_members WHERE team_id = ? AND user_id = ?`

func (q *Queries) IsTeamMember(ctx context.Context, arg TeamMemberParams) (bool, error) {
	row := q.db.QueryRowContext(ctx, isTeamMember, arg.TeamID, arg.UserID)
	var count int64
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

const listTeamMembers = `SELECT u.id, u.name, u.email, u.role, u.created_at
FROM users u
JOIN team_members tm ON tm.user_id = u.id
WHERE tm.team_id = ?
ORDER BY u.id`

func (q *Queries) ListTeamMembers(ctx context.Context, teamID int64) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listTeamMembers, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]User, 0)
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteTeamMembers = `DELETE FROM team_members WHERE team_id = ?`

func (q *Queries) DeleteTeamMembers(ctx context.Context, teamID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTeamMembers, teamID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
