package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codr1/roombook/internal/db"
	"github.com/codr1/roombook/internal/db/queries"
	"github.com/codr1/roombook/internal/notify"
	"github.com/codr1/roombook/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.OverriddenEvent
	err    error
}

func (p *recordingPublisher) PublishOverridden(_ context.Context, event notify.OverriddenEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type bookingFixture struct {
	db        *db.DB
	svc       *Service
	publisher *recordingPublisher
	user      queries.User
	room      queries.Room
	now       time.Time
}

var plus5 = time.FixedZone("+05:00", 5*60*60)

func setupBookingTest(t *testing.T) bookingFixture {
	t.Helper()

	database := testutil.NewTestDB(t)
	now := time.Date(2017, 12, 20, 9, 0, 0, 0, time.UTC)
	publisher := &recordingPublisher{}
	svc := NewService(database,
		WithPublisher(publisher),
		WithClock(func() time.Time { return now }),
	)

	return bookingFixture{
		db:        database,
		svc:       svc,
		publisher: publisher,
		user:      testutil.CreateUser(t, database, "student", "student"),
		room:      testutil.CreateRoom(t, database, "R1"),
		now:       now,
	}
}

func christmas(hour, minute int) time.Time {
	return time.Date(2017, 12, 25, hour, minute, 0, 0, plus5)
}

func (f bookingFixture) request(team queries.Team, start, end time.Time, override bool) ReservationRequest {
	return ReservationRequest{
		RoomID:   f.room.ID,
		TeamID:   team.ID,
		UserID:   f.user.ID,
		Interval: Interval{Start: start, End: end},
		Override: override,
	}
}

func TestCreateReservationPreservesOffset(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team-a", "other_team", f.user)

	saved, err := f.svc.CreateReservation(context.Background(), f.request(team, christmas(12, 30), christmas(13, 30), false))
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	if got := saved.StartTime.Format(time.RFC3339); got != "2017-12-25T12:30:00+05:00" {
		t.Fatalf("start: got %s want 2017-12-25T12:30:00+05:00", got)
	}
	if got := saved.EndTime.Format(time.RFC3339); got != "2017-12-25T13:30:00+05:00" {
		t.Fatalf("end: got %s want 2017-12-25T13:30:00+05:00", got)
	}
	if saved.RoomNumber != "R1" || saved.TeamName != "team-a" || saved.CreatedBy != f.user.ID {
		t.Fatalf("unexpected detail: %+v", saved)
	}
	if got := testutil.CountTeamReservations(t, f.db, team.ID); got != 1 {
		t.Fatalf("count: got %d want 1", got)
	}
}

func TestTouchingIntervalsDoNotConflict(t *testing.T) {
	f := setupBookingTest(t)
	teamA := testutil.CreateTeam(t, f.db, "team-a", "other_team", f.user)
	teamB := testutil.CreateTeam(t, f.db, "team-b", "other_team", f.user)
	ctx := context.Background()

	if _, err := f.svc.CreateReservation(ctx, f.request(teamA, christmas(12, 0), christmas(13, 0), false)); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(teamB, christmas(13, 0), christmas(14, 0), false)); err != nil {
		t.Fatalf("touching after: %v", err)
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(teamB, christmas(11, 0), christmas(12, 0), false)); err != nil {
		t.Fatalf("touching before: %v", err)
	}
	testutil.AssertNoOverlaps(t, f.db, f.room.ID)
}

func TestCreateReservationInvalidInterval(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team-a", "other_team", f.user)

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{name: "equal", start: christmas(12, 0), end: christmas(12, 0)},
		{name: "reversed", start: christmas(13, 0), end: christmas(12, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(context.Background(), f.request(team, tc.start, tc.end, false))
			if !errors.Is(err, ErrInvalidInterval) {
				t.Fatalf("got %v want ErrInvalidInterval", err)
			}
		})
	}

	// Missing room and team do not matter: the interval is checked first.
	req := ReservationRequest{RoomID: 999, TeamID: 999, UserID: f.user.ID, Interval: Interval{Start: christmas(13, 0), End: christmas(12, 0)}}
	if _, err := f.svc.CreateReservation(context.Background(), req); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("got %v want ErrInvalidInterval", err)
	}
}

func TestCreateReservationRejectsUnstorableTimes(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team-a", "other_team", f.user)
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{name: "end in 2620", start: christmas(14, 0), end: time.Date(2620, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "end in 2300", start: christmas(14, 0), end: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "start in 1600", start: time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), end: christmas(14, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(ctx, f.request(team, tc.start, tc.end, false))
			if !errors.Is(err, ErrInvalidInterval) {
				t.Fatalf("got %v want ErrInvalidInterval", err)
			}
			if errors.Is(err, ErrStorage) {
				t.Fatalf("unstorable time reported as storage failure: %v", err)
			}
		})
	}

	window := Interval{
		Start: time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2040, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	overlaps, err := FindOverlaps(ctx, f.db.Queries, f.room.ID, window, 0)
	if err != nil {
		t.Fatalf("find overlaps: %v", err)
	}
	if len(overlaps) != 0 {
		t.Fatalf("rejected requests were stored: got %d overlaps", len(overlaps))
	}

	// A long booking that ends inside the range is still seen by later windows.
	if _, err := f.svc.CreateReservation(ctx, f.request(team, christmas(14, 0), time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC), false)); err != nil {
		t.Fatalf("create long reservation: %v", err)
	}
	overlaps, err = FindOverlaps(ctx, f.db.Queries, f.room.ID, window, 0)
	if err != nil {
		t.Fatalf("find overlaps: %v", err)
	}
	if len(overlaps) != 1 {
		t.Fatalf("overlaps in 2040: got %d want 1", len(overlaps))
	}
}

func TestCreateReservationNotFound(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team-a", "other_team", f.user)

	req := f.request(team, christmas(12, 0), christmas(13, 0), false)
	req.RoomID = 999
	_, err := f.svc.CreateReservation(context.Background(), req)
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "room" {
		t.Fatalf("missing room: got %v want room NotFoundError", err)
	}

	req = f.request(team, christmas(12, 0), christmas(13, 0), false)
	req.TeamID = 999
	_, err = f.svc.CreateReservation(context.Background(), req)
	if !errors.As(err, &nf) || nf.Entity != "team" {
		t.Fatalf("missing team: got %v want team NotFoundError", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is(err, ErrNotFound)")
	}
}

func TestOverrideScenario(t *testing.T) {
	f := setupBookingTest(t)
	teamA := testutil.CreateTeam(t, f.db, "other_team_1", "other_team", f.user)
	teamB := testutil.CreateTeam(t, f.db, "senior_project_1", "senior_project", f.user)
	ctx := context.Background()
	start, end := christmas(12, 30), christmas(13, 30)

	original, err := f.svc.CreateReservation(ctx, f.request(teamA, start, end, false))
	if err != nil {
		t.Fatalf("initial reservation: %v", err)
	}

	_, err = f.svc.CreateReservation(ctx, f.request(teamB, start, end, false))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !conflict.Overridable {
		t.Fatalf("expected overridable conflict")
	}
	if ids := conflict.ConflictIDs(); len(ids) != 1 || ids[0] != original.ID {
		t.Fatalf("conflict ids: got %v want [%d]", ids, original.ID)
	}
	if got := testutil.CountTeamReservations(t, f.db, teamB.ID); got != 0 {
		t.Fatalf("count(B) after rejection: got %d want 0", got)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("events after rejection: got %d want 0", len(f.publisher.events))
	}

	saved, err := f.svc.CreateReservation(ctx, f.request(teamB, start, end, true))
	if err != nil {
		t.Fatalf("override reservation: %v", err)
	}
	if got := testutil.CountTeamReservations(t, f.db, teamB.ID); got != 1 {
		t.Fatalf("count(B): got %d want 1", got)
	}
	if got := testutil.CountTeamReservations(t, f.db, teamA.ID); got != 0 {
		t.Fatalf("count(A): got %d want 0", got)
	}
	testutil.AssertNoOverlaps(t, f.db, f.room.ID)

	if len(f.publisher.events) != 1 {
		t.Fatalf("events: got %d want 1", len(f.publisher.events))
	}
	event := f.publisher.events[0]
	if event.ReservationID != original.ID || event.OverridingReservationID != saved.ID || event.TeamID != teamA.ID {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestEqualPriorityNeverOverrides(t *testing.T) {
	f := setupBookingTest(t)
	teamA := testutil.CreateTeam(t, f.db, "team-a", "other_team", f.user)
	teamB := testutil.CreateTeam(t, f.db, "team-b", "single", f.user)
	ctx := context.Background()

	incumbent, err := f.svc.CreateReservation(ctx, f.request(teamA, christmas(12, 0), christmas(13, 0), false))
	if err != nil {
		t.Fatalf("initial reservation: %v", err)
	}

	for _, override := range []bool{false, true} {
		_, err := f.svc.CreateReservation(ctx, f.request(teamB, christmas(12, 30), christmas(13, 30), override))
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("override=%v: expected conflict, got %v", override, err)
		}
		if conflict.Overridable {
			t.Fatalf("override=%v: equal priority must not be overridable", override)
		}
	}

	got, err := f.db.Queries.GetReservationByID(ctx, incumbent.ID)
	if err != nil {
		t.Fatalf("incumbent lookup: %v", err)
	}
	if !got.StartTime.Equal(incumbent.StartTime) || got.TeamID != teamA.ID {
		t.Fatalf("incumbent changed: %+v", got)
	}
	if count := testutil.CountTeamReservations(t, f.db, teamB.ID); count != 0 {
		t.Fatalf("count(B): got %d want 0", count)
	}
}

func TestLowerPriorityIsFatal(t *testing.T) {
	f := setupBookingTest(t)
	high := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)
	low := testutil.CreateTeam(t, f.db, "others", "other_team", f.user)
	ctx := context.Background()

	if _, err := f.svc.CreateReservation(ctx, f.request(high, christmas(12, 0), christmas(13, 0), false)); err != nil {
		t.Fatalf("initial reservation: %v", err)
	}
	_, err := f.svc.CreateReservation(ctx, f.request(low, christmas(12, 0), christmas(13, 0), true))
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Overridable {
		t.Fatalf("expected fatal conflict, got %v", err)
	}
}

func TestOverrideRequiresOutrankingEveryIncumbent(t *testing.T) {
	f := setupBookingTest(t)
	others := testutil.CreateTeam(t, f.db, "others", "other_team", f.user)
	class := testutil.CreateTeam(t, f.db, "class", "class", f.user)
	seniors := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)
	ctx := context.Background()

	if _, err := f.svc.CreateReservation(ctx, f.request(others, christmas(10, 0), christmas(11, 0), false)); err != nil {
		t.Fatalf("others reservation: %v", err)
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(class, christmas(11, 0), christmas(12, 0), false)); err != nil {
		t.Fatalf("class reservation: %v", err)
	}

	_, err := f.svc.CreateReservation(ctx, f.request(seniors, christmas(10, 30), christmas(11, 30), true))
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Overridable {
		t.Fatalf("expected fatal conflict, got %v", err)
	}
	if len(conflict.Conflicts) != 2 {
		t.Fatalf("conflicts: got %d want 2", len(conflict.Conflicts))
	}
	// Nothing was deleted, including the weaker incumbent.
	if got := testutil.CountTeamReservations(t, f.db, others.ID); got != 1 {
		t.Fatalf("count(others): got %d want 1", got)
	}
}

func TestOverrideDeletesEveryIncumbent(t *testing.T) {
	f := setupBookingTest(t)
	others := testutil.CreateTeam(t, f.db, "others", "other_team", f.user)
	seniors := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)
	class := testutil.CreateTeam(t, f.db, "class", "class", f.user)
	ctx := context.Background()

	if _, err := f.svc.CreateReservation(ctx, f.request(others, christmas(10, 0), christmas(11, 0), false)); err != nil {
		t.Fatalf("others reservation: %v", err)
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(seniors, christmas(11, 0), christmas(12, 0), false)); err != nil {
		t.Fatalf("seniors reservation: %v", err)
	}

	if _, err := f.svc.CreateReservation(ctx, f.request(class, christmas(10, 0), christmas(12, 0), true)); err != nil {
		t.Fatalf("class override: %v", err)
	}
	if got := testutil.CountTeamReservations(t, f.db, others.ID) + testutil.CountTeamReservations(t, f.db, seniors.ID); got != 0 {
		t.Fatalf("incumbents remaining: got %d want 0", got)
	}
	if len(f.publisher.events) != 2 {
		t.Fatalf("events: got %d want 2", len(f.publisher.events))
	}
	testutil.AssertNoOverlaps(t, f.db, f.room.ID)
}

func TestPublishFailureDoesNotFailCommit(t *testing.T) {
	f := setupBookingTest(t)
	f.publisher.err = errors.New("broker down")
	others := testutil.CreateTeam(t, f.db, "others", "other_team", f.user)
	seniors := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)
	ctx := context.Background()

	if _, err := f.svc.CreateReservation(ctx, f.request(others, christmas(10, 0), christmas(11, 0), false)); err != nil {
		t.Fatalf("initial reservation: %v", err)
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(seniors, christmas(10, 0), christmas(11, 0), true)); err != nil {
		t.Fatalf("override with failing publisher: %v", err)
	}
	if got := testutil.CountTeamReservations(t, f.db, seniors.ID); got != 1 {
		t.Fatalf("count(seniors): got %d want 1", got)
	}
}

func TestUpdateReservationDoesNotConflictWithItself(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)
	ctx := context.Background()

	saved, err := f.svc.CreateReservation(ctx, f.request(team, christmas(12, 0), christmas(13, 0), false))
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	updated, err := f.svc.UpdateReservation(ctx, saved.ID, f.request(team, christmas(12, 0), christmas(14, 0), false))
	if err != nil {
		t.Fatalf("extend reservation: %v", err)
	}
	if updated.ID != saved.ID {
		t.Fatalf("id: got %d want %d", updated.ID, saved.ID)
	}
	if !updated.EndTime.Equal(christmas(14, 0)) {
		t.Fatalf("end: got %v want %v", updated.EndTime, christmas(14, 0))
	}
	if got := testutil.CountTeamReservations(t, f.db, team.ID); got != 1 {
		t.Fatalf("count: got %d want 1", got)
	}
}

func TestUpdateReservationConflictsWithOthers(t *testing.T) {
	f := setupBookingTest(t)
	others := testutil.CreateTeam(t, f.db, "others", "other_team", f.user)
	seniors := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)
	ctx := context.Background()

	incumbent, err := f.svc.CreateReservation(ctx, f.request(others, christmas(14, 0), christmas(15, 0), false))
	if err != nil {
		t.Fatalf("incumbent: %v", err)
	}
	mine, err := f.svc.CreateReservation(ctx, f.request(seniors, christmas(12, 0), christmas(13, 0), false))
	if err != nil {
		t.Fatalf("mine: %v", err)
	}

	_, err = f.svc.UpdateReservation(ctx, mine.ID, f.request(seniors, christmas(12, 0), christmas(14, 30), false))
	var conflict *ConflictError
	if !errors.As(err, &conflict) || !conflict.Overridable {
		t.Fatalf("expected overridable conflict, got %v", err)
	}
	unchanged, err := f.db.Queries.GetReservationByID(ctx, mine.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !unchanged.EndTime.Equal(christmas(13, 0)) {
		t.Fatalf("rejected update changed the reservation: end %v", unchanged.EndTime)
	}

	if _, err := f.svc.UpdateReservation(ctx, mine.ID, f.request(seniors, christmas(12, 0), christmas(14, 30), true)); err != nil {
		t.Fatalf("update with override: %v", err)
	}
	if _, err := f.db.Queries.GetReservationByID(ctx, incumbent.ID); err == nil {
		t.Fatalf("incumbent should have been deleted")
	}
	testutil.AssertNoOverlaps(t, f.db, f.room.ID)
}

func TestUpdateReservationNotFound(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team", "other_team", f.user)

	_, err := f.svc.UpdateReservation(context.Background(), 4242, f.request(team, christmas(12, 0), christmas(13, 0), false))
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "reservation" {
		t.Fatalf("got %v want reservation NotFoundError", err)
	}
}

func TestBeyondAdvanceBookingHorizon(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team", "other_team", f.user)

	// other_team may book 14 days ahead of 2017-12-20.
	start := time.Date(2018, 1, 10, 12, 0, 0, 0, time.UTC)
	_, err := f.svc.CreateReservation(context.Background(), f.request(team, start, start.Add(time.Hour), false))
	if !errors.Is(err, ErrBeyondHorizon) {
		t.Fatalf("got %v want ErrBeyondHorizon", err)
	}

	class := testutil.CreateTeam(t, f.db, "class", "class", f.user)
	if _, err := f.svc.CreateReservation(context.Background(), f.request(class, start, start.Add(time.Hour), false)); err != nil {
		t.Fatalf("class within horizon: %v", err)
	}
}

func TestDeleteTeamCascades(t *testing.T) {
	f := setupBookingTest(t)
	doomed := testutil.CreateTeam(t, f.db, "doomed", "other_team", f.user)
	kept := testutil.CreateTeam(t, f.db, "kept", "other_team", f.user)
	ctx := context.Background()

	for hour := 8; hour < 11; hour++ {
		if _, err := f.svc.CreateReservation(ctx, f.request(doomed, christmas(hour, 0), christmas(hour+1, 0), false)); err != nil {
			t.Fatalf("doomed reservation at %d: %v", hour, err)
		}
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(kept, christmas(15, 0), christmas(16, 0), false)); err != nil {
		t.Fatalf("kept reservation: %v", err)
	}

	removed, err := f.svc.DeleteTeam(ctx, doomed.ID)
	if err != nil {
		t.Fatalf("delete team: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed: got %d want 3", removed)
	}
	if got := testutil.CountTeamReservations(t, f.db, doomed.ID); got != 0 {
		t.Fatalf("count(doomed): got %d want 0", got)
	}
	if got := testutil.CountTeamReservations(t, f.db, kept.ID); got != 1 {
		t.Fatalf("count(kept): got %d want 1", got)
	}
	if _, err := f.db.Queries.GetTeamByID(ctx, doomed.ID); err == nil {
		t.Fatalf("team should be gone")
	}

	if _, err := f.svc.DeleteTeam(ctx, doomed.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v want ErrNotFound", err)
	}
}

func TestDeleteRoom(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team", "other_team", f.user)
	ctx := context.Background()

	past := time.Date(2017, 12, 1, 10, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateReservation(ctx, f.request(team, past, past.Add(time.Hour), false)); err != nil {
		t.Fatalf("past reservation: %v", err)
	}
	upcoming, err := f.svc.CreateReservation(ctx, f.request(team, christmas(12, 0), christmas(13, 0), false))
	if err != nil {
		t.Fatalf("upcoming reservation: %v", err)
	}

	if err := f.svc.DeleteRoom(ctx, f.room.ID); !errors.Is(err, ErrRoomInUse) {
		t.Fatalf("delete booked room: got %v want ErrRoomInUse", err)
	}

	if err := f.svc.DeleteReservation(ctx, upcoming.ID); err != nil {
		t.Fatalf("delete reservation: %v", err)
	}
	if err := f.svc.DeleteRoom(ctx, f.room.ID); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	if _, err := f.db.Queries.GetRoomByID(ctx, f.room.ID); err == nil {
		t.Fatalf("room should be gone")
	}
	if got := testutil.CountTeamReservations(t, f.db, team.ID); got != 0 {
		t.Fatalf("history: got %d want 0", got)
	}
}

func TestDeleteReservationNotFound(t *testing.T) {
	f := setupBookingTest(t)
	if err := f.svc.DeleteReservation(context.Background(), 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestPurgeEndedBefore(t *testing.T) {
	f := setupBookingTest(t)
	team := testutil.CreateTeam(t, f.db, "team", "other_team", f.user)
	ctx := context.Background()

	old := time.Date(2017, 1, 1, 10, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateReservation(ctx, f.request(team, old, old.Add(time.Hour), false)); err != nil {
		t.Fatalf("old reservation: %v", err)
	}
	if _, err := f.svc.CreateReservation(ctx, f.request(team, christmas(12, 0), christmas(13, 0), false)); err != nil {
		t.Fatalf("upcoming reservation: %v", err)
	}

	purged, err := f.svc.PurgeEndedBefore(ctx, f.now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged: got %d want 1", purged)
	}
	if got := testutil.CountTeamReservations(t, f.db, team.ID); got != 1 {
		t.Fatalf("remaining: got %d want 1", got)
	}
}

func TestCancelledContextHasNoSideEffects(t *testing.T) {
	f := setupBookingTest(t)
	others := testutil.CreateTeam(t, f.db, "others", "other_team", f.user)
	seniors := testutil.CreateTeam(t, f.db, "seniors", "senior_project", f.user)

	if _, err := f.svc.CreateReservation(context.Background(), f.request(others, christmas(12, 0), christmas(13, 0), false)); err != nil {
		t.Fatalf("initial reservation: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.CreateReservation(ctx, f.request(seniors, christmas(12, 0), christmas(13, 0), true))
	if !errors.Is(err, ErrStorage) || !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want storage failure caused by cancellation", err)
	}
	if got := testutil.CountTeamReservations(t, f.db, others.ID); got != 1 {
		t.Fatalf("count(others): got %d want 1", got)
	}
	if got := testutil.CountTeamReservations(t, f.db, seniors.ID); got != 0 {
		t.Fatalf("count(seniors): got %d want 0", got)
	}
}

func TestConcurrentOverlappingCreatesCommitOnce(t *testing.T) {
	f := setupBookingTest(t)
	const workers = 8

	teams := make([]queries.Team, workers)
	for i := range teams {
		teams[i] = testutil.CreateTeam(t, f.db, "team-"+string(rune('a'+i)), "other_team", f.user)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		conflicts int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(team queries.Team, offset int) {
			defer wg.Done()
			start := christmas(12, offset)
			_, err := f.svc.CreateReservation(context.Background(), f.request(team, start, start.Add(time.Hour), false))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				failures = append(failures, err)
			}
		}(teams[i], i)
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if committed != 1 || conflicts != workers-1 {
		t.Fatalf("committed=%d conflicts=%d, want 1 and %d", committed, conflicts, workers-1)
	}
	testutil.AssertNoOverlaps(t, f.db, f.room.ID)
}
