package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codr1/roombook/internal/db"
	"github.com/codr1/roombook/internal/db/queries"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// CreateUser inserts a user named name with the given role.
func CreateUser(t *testing.T, database *db.DB, name, role string) queries.User {
	t.Helper()

	user, err := database.Queries.CreateUser(context.Background(), queries.CreateUserParams{
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	})
	if err != nil {
		t.Fatalf("insert user %s: %v", name, err)
	}
	return user
}

// CreateTeam inserts a team of teamType and adds members to it.
func CreateTeam(t *testing.T, database *db.DB, name, teamType string, members ...queries.User) queries.Team {
	t.Helper()

	ctx := context.Background()
	team, err := database.Queries.CreateTeam(ctx, queries.CreateTeamParams{Name: name, TeamType: teamType})
	if err != nil {
		t.Fatalf("insert team %s: %v", name, err)
	}
	for _, member := range members {
		if err := database.Queries.AddTeamMember(ctx, queries.TeamMemberParams{TeamID: team.ID, UserID: member.ID}); err != nil {
			t.Fatalf("add member %d to team %s: %v", member.ID, name, err)
		}
	}
	return team
}

func CreateRoom(t *testing.T, database *db.DB, number string) queries.Room {
	t.Helper()

	room, err := database.Queries.CreateRoom(context.Background(), number)
	if err != nil {
		t.Fatalf("insert room %s: %v", number, err)
	}
	return room
}

// CountTeamReservations returns how many reservations teamID holds.
func CountTeamReservations(t *testing.T, database *db.DB, teamID int64) int64 {
	t.Helper()

	count, err := database.Queries.CountReservationsByTeam(context.Background(), teamID)
	if err != nil {
		t.Fatalf("count reservations for team %d: %v", teamID, err)
	}
	return count
}

// AssertNoOverlaps fails the test if any two reservations on roomID overlap.
func AssertNoOverlaps(t *testing.T, database *db.DB, roomID int64) {
	t.Helper()

	reservations, err := database.Queries.ListReservationsByRoom(context.Background(), roomID)
	if err != nil {
		t.Fatalf("list reservations for room %d: %v", roomID, err)
	}
	for i := range reservations {
		for j := i + 1; j < len(reservations); j++ {
			a, b := reservations[i], reservations[j]
			if a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime) {
				t.Fatalf("reservations %d and %d overlap on room %d", a.ID, b.ID, roomID)
			}
		}
	}
}
