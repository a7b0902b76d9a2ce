package queries

import "context"

const upsertTeamType = `INSERT INTO team_types (name, priority, advance_booking_days, elevated)
VALUES (?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
    priority = excluded.priority,
    advance_booking_days = excluded.advance_booking_days,
    elevated = excluded.elevated`

func (q *Queries) UpsertTeamType(ctx context.Context, arg TeamType) error {
	_, err := q.db.ExecContext(ctx, upsertTeamType, arg.Name, arg.Priority, arg.AdvanceBookingDays, arg.Elevated)
	return err
}

const listTeamTypes = `SELECT name, priority, advance_booking_days, elevated FROM team_types ORDER BY name`

func (q *Queries) ListTeamTypes(ctx context.Context) ([]TeamType, error) {
	rows, err := q.db.QueryContext(ctx, listTeamTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TeamType
	for rows.Next() {
		var i TeamType
		if err := rows.Scan(&i.Name, &i.Priority, &i.AdvanceBookingDays, &i.Elevated); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
