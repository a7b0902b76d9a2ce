package queries

import "context"

const createRoom = `INSERT INTO rooms (number) VALUES (?)`

func (q *Queries) CreateRoom(ctx context.Context, number string) (Room, error) {
	result, err := q.db.ExecContext(ctx, createRoom, number)
	if err != nil {
		return Room{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Room{}, err
	}
	return q.GetRoomByID(ctx, id)
}

const getRoomByID = `SELECT id, number, created_at FROM rooms WHERE id = ?`

func (q *Queries) GetRoomByID(ctx context.Context, id int64) (Room, error) {
	row := q.db.QueryRowContext(ctx, getRoomByID, id)
	var i Room
	err := row.Scan(&i.ID, &i.Number, &i.CreatedAt)
	return i, err
}

const listRooms = `SELECT id, number, created_at FROM rooms ORDER BY number`

func (q *Queries) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := q.db.QueryContext(ctx, listRooms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Room, 0)
	for rows.Next() {
		var i Room
		if err := rows.Scan(&i.ID, &i.Number, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type UpdateRoomNumberParams struct {
	ID     int64
	Number string
}

const updateRoomNumber = `UPDATE rooms SET number = ? WHERE id = ?`

func (q *Queries) UpdateRoomNumber(ctx context.Context, arg UpdateRoomNumberParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRoomNumber, arg.Number, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRoom = `DELETE FROM rooms WHERE id = ?`

func (q *Queries) DeleteRoom(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRoom, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
