package parking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeStore struct {
	mu       sync.Mutex
	spaces   map[string]Space
	sessions map[string]Session
	fail     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		spaces:   make(map[string]Space),
		sessions: make(map[string]Session),
	}
}

func (s *fakeStore) LoadSpaces(context.Context) ([]Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spaces := make([]Space, 0, len(s.spaces))
	for _, sp := range s.spaces {
		spaces = append(spaces, sp)
	}
	return spaces, nil
}

func (s *fakeStore) LoadSessions(context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]Session, 0, len(s.sessions))
	for _, ss := range s.sessions {
		sessions = append(sessions, ss.clone())
	}
	return sessions, nil
}

func (s *fakeStore) SaveSpace(_ context.Context, space Space) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.spaces[space.ID] = space
	return nil
}

func (s *fakeStore) DeleteSpace(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.spaces, id)
	return nil
}

func (s *fakeStore) SaveEntry(_ context.Context, session Session, space Space) error {
	return s.saveBoth(session, space)
}

func (s *fakeStore) SaveClose(_ context.Context, session Session, space Space) error {
	return s.saveBoth(session, space)
}

func (s *fakeStore) saveBoth(session Session, space Space) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.sessions[session.ID] = session.clone()
	s.spaces[space.ID] = space
	return nil
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	directory, err := NewDirectory(DefaultPeople())
	require.NoError(t, err)

	clock := newFakeClock()
	m := NewManager(directory, append([]Option{WithClock(clock.now)}, opts...)...)

	added, err := m.Provision(context.Background(), DefaultSpaces())
	require.NoError(t, err)
	require.Equal(t, 40, added)
	return m, clock
}

func mustSpace(t *testing.T, m *Manager, code string) Space {
	t.Helper()
	space, err := m.SpaceByCode(code)
	require.NoError(t, err)
	return space
}

func entry(plate string, personID int64, spaceID string, accessible bool) EntryRequest {
	return EntryRequest{
		LicensePlate:            plate,
		PersonID:                personID,
		SpaceID:                 spaceID,
		RequiresAccessibleSpace: accessible,
	}
}

type state struct {
	spaces   []Space
	sessions []Session
}

func snapshot(m *Manager) state {
	return state{
		spaces:   m.ListSpaces(SpaceFilter{}),
		sessions: m.ListSessions(""),
	}
}

func TestRegisterEntryOccupiesSpace(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "SS-03")

	session, err := m.RegisterEntry(ctx, entry("abc123", 1, space.ID, false))
	require.NoError(t, err)

	assert.Equal(t, "ABC123", session.LicensePlate)
	assert.Equal(t, int64(1), session.PersonID)
	assert.Equal(t, space.ID, session.SpaceID)
	assert.Equal(t, clock.now(), session.EntryTime)
	assert.Nil(t, session.ExitTime)
	assert.Equal(t, Money(0), session.Fee)
	assert.Equal(t, SessionActive, session.Status)

	assert.Equal(t, SpaceOccupied, mustSpace(t, m, "SS-03").Status)
	require.NoError(t, m.CheckInvariants())
}

func TestRegisterEntryByDNIAndSpaceCode(t *testing.T) {
	m, _ := newTestManager(t)

	session, err := m.RegisterEntry(context.Background(), EntryRequest{
		LicensePlate: "XYZ999",
		DNI:          "87654321",
		SpaceCode:    "s1-20",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), session.PersonID)
	assert.Equal(t, mustSpace(t, m, "S1-20").ID, session.SpaceID)
}

func TestRegisterEntryValidationOrder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	occupied := mustSpace(t, m, "SS-04")
	_, err := m.RegisterEntry(ctx, entry("PRK001", 1, occupied.ID, false))
	require.NoError(t, err)

	accessible := mustSpace(t, m, "SS-01")
	regular := mustSpace(t, m, "SS-11")

	tests := []struct {
		name string
		req  EntryRequest
		want error
		kind error
	}{
		{"plate before person", entry("12-AB", 99, "missing", false), ErrInvalidPlate, ErrValidation},
		{"person before space", entry("ABC123", 99, "missing", false), ErrPersonNotFound, ErrNotFound},
		{"space lookup", entry("ABC123", 1, "missing", false), ErrSpaceNotFound, ErrNotFound},
		{"availability before accessibility", entry("ABC123", 1, occupied.ID, true), ErrSpaceUnavailable, ErrConflict},
		{"accessibility before parked vehicle", entry("PRK001", 1, accessible.ID, false), ErrAccessibilityMismatch, ErrValidation},
		{"vehicle already parked", entry("PRK001", 1, regular.ID, false), ErrVehicleAlreadyParked, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := snapshot(m)

			_, err := m.RegisterEntry(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, before, snapshot(m))
		})
	}
}

func TestEntryIntoOccupiedSpaceLeavesStateUnchanged(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "S1-30")

	_, err := m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	require.NoError(t, err)
	clock.advance(10 * time.Minute)

	before := snapshot(m)
	_, err = m.RegisterEntry(ctx, entry("XYZ999", 2, space.ID, false))
	assert.True(t, IsConflict(err))
	assert.Equal(t, before, snapshot(m))
}

func TestEntryExitRoundTrip(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "S1-16")

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	require.NoError(t, err)

	clock.advance(time.Second)
	closed, err := m.RegisterExit(ctx, session.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, SessionCompleted, closed.Status)
	require.NotNil(t, closed.ExitTime)
	assert.Equal(t, clock.now(), *closed.ExitTime)
	assert.Equal(t, int64(1), closed.BilledHours)
	assert.Greater(t, closed.Fee, Money(0))
	assert.Equal(t, SpaceAvailable, mustSpace(t, m, "S1-16").Status)
	require.NoError(t, m.CheckInvariants())
}

func TestBillingBoundary(t *testing.T) {
	tests := []struct {
		stay  time.Duration
		hours int64
	}{
		{0, 1},
		{59 * time.Minute, 1},
		{time.Hour, 1},
		{61 * time.Minute, 2},
		{5*time.Hour + time.Second, 6},
	}

	for _, tt := range tests {
		t.Run(tt.stay.String(), func(t *testing.T) {
			m, clock := newTestManager(t)
			ctx := context.Background()

			session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-12").ID, false))
			require.NoError(t, err)

			exit := clock.now().Add(tt.stay)
			closed, err := m.RegisterExit(ctx, session.ID, &exit)
			require.NoError(t, err)

			assert.Equal(t, tt.hours, closed.BilledHours)
			assert.Equal(t, Money(tt.hours)*DefaultHourlyRate, closed.Fee)
		})
	}
}

func TestCustomTariff(t *testing.T) {
	m, clock := newTestManager(t, WithTariff(Tariff{HourlyRate: 750}))
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-12").ID, false))
	require.NoError(t, err)

	exit := clock.now().Add(90 * time.Minute)
	closed, err := m.RegisterExit(ctx, session.ID, &exit)
	require.NoError(t, err)
	assert.Equal(t, "15.00", closed.Fee.String())
}

func TestSpaceReuseAfterExit(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "SS-03")
	require.Equal(t, SpaceAvailable, space.Status)

	first, err := m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	require.NoError(t, err)
	assert.Equal(t, SpaceOccupied, mustSpace(t, m, "SS-03").Status)

	_, err = m.RegisterEntry(ctx, entry("XYZ999", 2, space.ID, false))
	assert.ErrorIs(t, err, ErrConflict)

	clock.advance(30 * time.Minute)
	_, err = m.RegisterExit(ctx, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, SpaceAvailable, mustSpace(t, m, "SS-03").Status)

	second, err := m.RegisterEntry(ctx, entry("XYZ999", 2, space.ID, false))
	require.NoError(t, err)
	assert.Equal(t, SessionActive, second.Status)
	require.NoError(t, m.CheckInvariants())
}

func TestAccessibilityMustMatchExactly(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	before := snapshot(m)

	_, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-03").ID, true))
	assert.ErrorIs(t, err, ErrAccessibilityMismatch)
	assert.True(t, IsValidation(err))

	_, err = m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-01").ID, false))
	assert.ErrorIs(t, err, ErrAccessibilityMismatch)

	assert.Equal(t, before, snapshot(m))

	_, err = m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-01").ID, true))
	assert.NoError(t, err)
}

func TestExitOfCompletedSessionIsConflict(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-03").ID, false))
	require.NoError(t, err)
	clock.advance(2 * time.Hour)
	closed, err := m.RegisterExit(ctx, session.ID, nil)
	require.NoError(t, err)

	clock.advance(5 * time.Hour)
	_, err = m.RegisterExit(ctx, session.ID, nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.True(t, IsConflict(err))

	again, err := m.Session(session.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.Fee, again.Fee)
	assert.Equal(t, closed.ExitTime, again.ExitTime)
}

func TestRegisterExitUnknownSession(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.RegisterExit(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, IsNotFound(err))
}

func TestRegisterExitBeforeEntry(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-03").ID, false))
	require.NoError(t, err)

	before := snapshot(m)
	early := clock.now().Add(-time.Minute)
	_, err = m.RegisterExit(ctx, session.ID, &early)
	assert.ErrorIs(t, err, ErrExitBeforeEntry)
	assert.Equal(t, before, snapshot(m))
}

func TestRegisterExitTruncatesToMicroseconds(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-03").ID, false))
	require.NoError(t, err)

	exit := clock.now().Add(30*time.Minute + 1234567*time.Nanosecond).In(time.FixedZone("PET", -5*3600))
	closed, err := m.RegisterExit(ctx, session.ID, &exit)
	require.NoError(t, err)

	want := clock.now().Add(30*time.Minute + 1234*time.Microsecond)
	require.NotNil(t, closed.ExitTime)
	assert.True(t, closed.ExitTime.Equal(want), "exit time %s", closed.ExitTime)
	assert.Equal(t, time.UTC, closed.ExitTime.Location())

	stored, err := m.Session(session.ID)
	require.NoError(t, err)
	assert.True(t, stored.ExitTime.Equal(want), "stored exit time %s", stored.ExitTime)
}

func TestRegisterExitByPlate(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.RegisterExitByPlate(ctx, "ABC123", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "S1-40").ID, false))
	require.NoError(t, err)

	clock.advance(3*time.Hour + time.Minute)
	closed, err := m.RegisterExitByPlate(ctx, " abc123 ", nil)
	require.NoError(t, err)
	assert.Equal(t, session.ID, closed.ID)
	assert.Equal(t, int64(4), closed.BilledHours)
	assert.Equal(t, "20.00", closed.Fee.String())

	_, err = m.RegisterExitByPlate(ctx, "ABC123", nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestActiveSessionByPlate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "S1-40").ID, false))
	require.NoError(t, err)

	found, err := m.ActiveSessionByPlate("abc123")
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	_, err = m.ActiveSessionByPlate("ZZZ000")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCancelSession(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-13").ID, false))
	require.NoError(t, err)
	clock.advance(3 * time.Hour)

	cancelled, err := m.CancelSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionCancelled, cancelled.Status)
	assert.Equal(t, Money(0), cancelled.Fee)
	assert.Equal(t, int64(0), cancelled.BilledHours)
	require.NotNil(t, cancelled.ExitTime)
	assert.Equal(t, clock.now(), *cancelled.ExitTime)
	assert.Equal(t, SpaceAvailable, mustSpace(t, m, "SS-13").Status)

	_, err = m.CancelSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	_, err = m.CancelSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	require.NoError(t, m.CheckInvariants())
}

func TestMaintenance(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "S1-22")

	updated, err := m.SetMaintenance(ctx, space.ID, true)
	require.NoError(t, err)
	assert.Equal(t, SpaceMaintenance, updated.Status)

	_, err = m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	assert.ErrorIs(t, err, ErrSpaceUnavailable)

	updated, err = m.SetMaintenance(ctx, space.ID, true)
	require.NoError(t, err)
	assert.Equal(t, SpaceMaintenance, updated.Status)

	updated, err = m.SetMaintenance(ctx, space.ID, false)
	require.NoError(t, err)
	assert.Equal(t, SpaceAvailable, updated.Status)

	_, err = m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	require.NoError(t, err)

	_, err = m.SetMaintenance(ctx, space.ID, true)
	assert.ErrorIs(t, err, ErrSpaceInUse)

	_, err = m.SetMaintenance(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrSpaceNotFound)
}

func TestAddAndRemoveSpace(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	space, err := m.AddSpace(ctx, NewSpace{Code: " s1-47 ", Floor: FloorS1})
	require.NoError(t, err)
	assert.Equal(t, "S1-47", space.Code)
	assert.Equal(t, SpaceAvailable, space.Status)

	_, err = m.AddSpace(ctx, NewSpace{Code: "S1-47", Floor: FloorS1})
	assert.ErrorIs(t, err, ErrDuplicateSpace)

	_, err = m.AddSpace(ctx, NewSpace{Code: "X-01", Floor: Floor("S9")})
	assert.ErrorIs(t, err, ErrInvalidFloor)

	_, err = m.AddSpace(ctx, NewSpace{Code: "  ", Floor: FloorS1})
	assert.ErrorIs(t, err, ErrInvalidSpaceCode)

	require.NoError(t, m.RemoveSpace(ctx, space.ID))
	_, err = m.SpaceByCode("S1-47")
	assert.ErrorIs(t, err, ErrSpaceNotFound)

	assert.ErrorIs(t, m.RemoveSpace(ctx, space.ID), ErrSpaceNotFound)
}

func TestRemoveSpaceWithHistoryIsConflict(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "SS-14")

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	require.NoError(t, err)
	assert.ErrorIs(t, m.RemoveSpace(ctx, space.ID), ErrSpaceInUse)

	_, err = m.RegisterExit(ctx, session.ID, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, m.RemoveSpace(ctx, space.ID), ErrSpaceInUse)
}

func TestListSessionsFilterAndOrder(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()

	plates := []string{"AAA111", "BBB222", "CCC333"}
	codes := []string{"S1-17", "S1-18", "S1-19"}
	ids := make([]string, len(plates))
	for i := range plates {
		s, err := m.RegisterEntry(ctx, entry(plates[i], int64(i+1), mustSpace(t, m, codes[i]).ID, false))
		require.NoError(t, err)
		ids[i] = s.ID
		clock.advance(time.Minute)
	}
	_, err := m.RegisterExit(ctx, ids[1], nil)
	require.NoError(t, err)

	all := m.ListSessions("")
	require.Len(t, all, 3)
	for i, s := range all {
		assert.Equal(t, plates[i], s.LicensePlate)
	}

	active := m.ListSessions(SessionActive)
	require.Len(t, active, 2)
	assert.Equal(t, "AAA111", active[0].LicensePlate)
	assert.Equal(t, "CCC333", active[1].LicensePlate)

	completed := m.ListSessions(SessionCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "BBB222", completed[0].LicensePlate)

	assert.Empty(t, m.ListSessions(SessionCancelled))
}

func TestListSpacesFilter(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	all := m.ListSpaces(SpaceFilter{})
	require.Len(t, all, 40)
	assert.Equal(t, "SS-01", all[0].Code)
	assert.Equal(t, "S1-46", all[len(all)-1].Code)

	assert.Len(t, m.ListSpaces(SpaceFilter{Floor: FloorSS}), 8)
	assert.Len(t, m.ListSpaces(SpaceFilter{Floor: FloorS1}), 32)

	yes := true
	accessible := m.ListSpaces(SpaceFilter{Accessible: &yes})
	require.Len(t, accessible, 3)
	assert.Equal(t, "SS-01", accessible[0].Code)
	assert.Equal(t, "SS-02", accessible[1].Code)
	assert.Equal(t, "S1-15", accessible[2].Code)

	_, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-02").ID, true))
	require.NoError(t, err)

	occupied := m.ListSpaces(SpaceFilter{Status: SpaceOccupied})
	require.Len(t, occupied, 1)
	assert.Equal(t, "SS-02", occupied[0].Code)

	no := false
	assert.Empty(t, m.ListSpaces(SpaceFilter{Floor: FloorSS, Status: SpaceOccupied, Accessible: &no}))
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-03").ID, false))
	require.NoError(t, err)
	closed, err := m.RegisterExit(ctx, session.ID, nil)
	require.NoError(t, err)

	*closed.ExitTime = closed.ExitTime.Add(100 * time.Hour)
	closed.Status = SessionActive

	stored, err := m.Session(session.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, stored.Status)
	assert.Equal(t, stored.EntryTime, *stored.ExitTime)
}

func TestConcurrentEntriesDoNotDoubleBook(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	space := mustSpace(t, m, "S1-33")

	const workers = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.RegisterEntry(ctx, entry(fmt.Sprintf("CON%03d", i), int64(i%4+1), space.ID, false))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrSpaceUnavailable):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
	assert.Len(t, m.ListSessions(SessionActive), 1)
	require.NoError(t, m.CheckInvariants())
}

func TestConcurrentEntriesOfSamePlate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	spaces := m.ListSpaces(SpaceFilter{Floor: FloorS1, Accessible: new(bool)})

	var wg sync.WaitGroup
	for _, space := range spaces {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.RegisterEntry(ctx, entry("DUP123", 1, id, false))
		}(space.ID)
	}
	wg.Wait()

	assert.Len(t, m.ListSessions(SessionActive), 1)
	assert.Len(t, m.ListSpaces(SpaceFilter{Status: SpaceOccupied}), 1)
	require.NoError(t, m.CheckInvariants())
}

func TestStoreFailureLeavesStateUnchanged(t *testing.T) {
	store := newFakeStore()
	m, clock := newTestManager(t, WithStore(store))
	ctx := context.Background()
	space := mustSpace(t, m, "SS-03")

	session, err := m.RegisterEntry(ctx, entry("ABC123", 1, space.ID, false))
	require.NoError(t, err)

	store.fail = errors.New("disk full")
	clock.advance(time.Hour)
	before := snapshot(m)

	_, err = m.RegisterEntry(ctx, entry("XYZ999", 2, mustSpace(t, m, "SS-04").ID, false))
	assert.ErrorContains(t, err, "disk full")
	assert.False(t, IsConflict(err) || IsNotFound(err) || IsValidation(err))

	_, err = m.RegisterExit(ctx, session.ID, nil)
	assert.ErrorContains(t, err, "disk full")

	_, err = m.SetMaintenance(ctx, mustSpace(t, m, "SS-11").ID, true)
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, before, snapshot(m))
}

func TestRestoreFromStore(t *testing.T) {
	store := newFakeStore()
	m, clock := newTestManager(t, WithStore(store))
	ctx := context.Background()

	first, err := m.RegisterEntry(ctx, entry("ABC123", 1, mustSpace(t, m, "SS-03").ID, false))
	require.NoError(t, err)
	_, err = m.RegisterEntry(ctx, entry("XYZ999", 2, mustSpace(t, m, "S1-20").ID, false))
	require.NoError(t, err)
	clock.advance(2 * time.Hour)
	_, err = m.RegisterExit(ctx, first.ID, nil)
	require.NoError(t, err)

	directory, err := NewDirectory(DefaultPeople())
	require.NoError(t, err)
	restored := NewManager(directory, WithStore(store), WithClock(clock.now))
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, snapshot(m), snapshot(restored))

	_, err = restored.RegisterEntry(ctx, entry("XYZ999", 2, mustSpace(t, restored, "SS-04").ID, false))
	assert.ErrorIs(t, err, ErrVehicleAlreadyParked)

	_, err = restored.RegisterExitByPlate(ctx, "ABC123", nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRestoreRejectsInconsistentSnapshot(t *testing.T) {
	store := newFakeStore()
	m, _ := newTestManager(t, WithStore(store))
	ctx := context.Background()

	space := mustSpace(t, m, "SS-03")
	space.Status = SpaceOccupied
	store.spaces[space.ID] = space

	before := snapshot(m)
	err := m.Restore(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SS-03")
	assert.Equal(t, before, snapshot(m))
}

func TestRestoreWithoutStore(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Error(t, m.Restore(context.Background()))
}
