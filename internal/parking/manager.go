package parking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists manager state. SaveEntry and SaveClose must write the
// session and the space together or not at all.
type Store interface {
	LoadSpaces(ctx context.Context) ([]Space, error)
	LoadSessions(ctx context.Context) ([]Session, error)
	SaveSpace(ctx context.Context, space Space) error
	DeleteSpace(ctx context.Context, id string) error
	SaveEntry(ctx context.Context, session Session, space Space) error
	SaveClose(ctx context.Context, session Session, space Space) error
}

type Option func(*Manager)

func WithStore(store Store) Option {
	return func(m *Manager) { m.store = store }
}

func WithTariff(tariff Tariff) Option {
	return func(m *Manager) { m.tariff = tariff }
}

func WithPlateFormat(format *PlateFormat) Option {
	return func(m *Manager) { m.plates = format }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the parking spaces and sessions. All mutations happen under a
// single lock, held from the availability checks until both the session and
// the space have been updated.
type Manager struct {
	mu sync.RWMutex

	directory UserDirectory
	store     Store
	tariff    Tariff
	plates    *PlateFormat
	now       func() time.Time

	spaces      map[string]*Space
	spaceByCode map[string]string
	sessions    map[string]*Session

	activeByPlate map[string]string
	activeBySpace map[string]string
	plateSessions map[string]int
	spaceRefs     map[string]int
}

func NewManager(directory UserDirectory, opts ...Option) *Manager {
	m := &Manager{
		directory: directory,
		tariff:    Tariff{HourlyRate: DefaultHourlyRate},
		plates:    defaultPlateFormat(),
		now:       time.Now,
	}
	m.reset()

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) reset() {
	m.spaces = make(map[string]*Space)
	m.spaceByCode = make(map[string]string)
	m.sessions = make(map[string]*Session)
	m.activeByPlate = make(map[string]string)
	m.activeBySpace = make(map[string]string)
	m.plateSessions = make(map[string]int)
	m.spaceRefs = make(map[string]int)
}

func (m *Manager) Tariff() Tariff {
	return m.tariff
}

func (m *Manager) clock() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// Restore replaces the in-memory state with the contents of the store. A
// snapshot that violates the occupancy invariants is rejected and the current
// state is kept.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return errors.New("restore: no store configured")
	}

	spaces, err := m.store.LoadSpaces(ctx)
	if err != nil {
		return fmt.Errorf("load spaces: %w", err)
	}
	sessions, err := m.store.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prevSpaces, prevCodes, prevSessions := m.spaces, m.spaceByCode, m.sessions
	prevByPlate, prevBySpace := m.activeByPlate, m.activeBySpace
	prevPlateSessions, prevRefs := m.plateSessions, m.spaceRefs
	m.reset()
	for i := range spaces {
		space := spaces[i]
		m.spaces[space.ID] = &space
		m.spaceByCode[space.Code] = space.ID
	}
	for i := range sessions {
		session := sessions[i].clone()
		m.indexSessionLocked(&session)
	}

	if err := m.checkInvariantsLocked(); err != nil {
		m.spaces, m.spaceByCode, m.sessions = prevSpaces, prevCodes, prevSessions
		m.activeByPlate, m.activeBySpace = prevByPlate, prevBySpace
		m.plateSessions, m.spaceRefs = prevPlateSessions, prevRefs
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

// Provision adds every space whose code is not registered yet.
func (m *Manager) Provision(ctx context.Context, spaces []NewSpace) (int, error) {
	added := 0
	for _, ns := range spaces {
		if _, err := m.AddSpace(ctx, ns); err != nil {
			if errors.Is(err, ErrDuplicateSpace) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

func (m *Manager) AddSpace(ctx context.Context, ns NewSpace) (Space, error) {
	code := strings.ToUpper(strings.TrimSpace(ns.Code))
	if code == "" {
		return Space{}, ErrInvalidSpaceCode
	}
	if !ns.Floor.Valid() {
		return Space{}, ErrInvalidFloor
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.spaceByCode[code]; exists {
		return Space{}, fmt.Errorf("%w: %s", ErrDuplicateSpace, code)
	}

	now := m.clock()
	space := Space{
		ID:           uuid.NewString(),
		Code:         code,
		Floor:        ns.Floor,
		IsAccessible: ns.IsAccessible,
		Status:       SpaceAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.store != nil {
		if err := m.store.SaveSpace(ctx, space); err != nil {
			return Space{}, fmt.Errorf("persist space: %w", err)
		}
	}

	m.spaces[space.ID] = &space
	m.spaceByCode[code] = space.ID
	return space, nil
}

// RemoveSpace deletes a space that no session, active or historical, refers to.
func (m *Manager) RemoveSpace(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	space, ok := m.spaces[id]
	if !ok {
		return ErrSpaceNotFound
	}
	if space.Status == SpaceOccupied || m.spaceRefs[id] > 0 {
		return fmt.Errorf("%w: %s", ErrSpaceInUse, space.Code)
	}

	if m.store != nil {
		if err := m.store.DeleteSpace(ctx, id); err != nil {
			return fmt.Errorf("delete space: %w", err)
		}
	}

	delete(m.spaceByCode, space.Code)
	delete(m.spaces, id)
	return nil
}

// SetMaintenance moves an unoccupied space in or out of maintenance.
func (m *Manager) SetMaintenance(ctx context.Context, id string, maintenance bool) (Space, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	space, ok := m.spaces[id]
	if !ok {
		return Space{}, ErrSpaceNotFound
	}
	if space.Status == SpaceOccupied {
		return Space{}, fmt.Errorf("%w: %s", ErrSpaceInUse, space.Code)
	}

	target := SpaceAvailable
	if maintenance {
		target = SpaceMaintenance
	}
	if space.Status == target {
		return *space, nil
	}

	next := *space
	next.Status = target
	next.UpdatedAt = m.clock()
	if m.store != nil {
		if err := m.store.SaveSpace(ctx, next); err != nil {
			return Space{}, fmt.Errorf("persist space: %w", err)
		}
	}

	*space = next
	return next, nil
}

// RegisterEntry opens a session for a vehicle. Checks run in a fixed order
// and the first failure is returned: plate format, person, space, space
// availability, accessibility, vehicle already parked.
func (m *Manager) RegisterEntry(ctx context.Context, req EntryRequest) (Session, error) {
	plate, err := m.plates.Normalize(req.LicensePlate)
	if err != nil {
		return Session{}, err
	}

	person, err := m.resolvePerson(ctx, req)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	space, err := m.resolveSpaceLocked(req)
	if err != nil {
		return Session{}, err
	}
	if !space.IsAvailable() {
		return Session{}, fmt.Errorf("%w: %s is %s", ErrSpaceUnavailable, space.Code, space.Status)
	}
	if req.RequiresAccessibleSpace != space.IsAccessible {
		return Session{}, fmt.Errorf("%w: %s", ErrAccessibilityMismatch, space.Code)
	}
	if _, parked := m.activeByPlate[plate]; parked {
		return Session{}, fmt.Errorf("%w: %s", ErrVehicleAlreadyParked, plate)
	}

	now := m.clock()
	session := Session{
		ID:           uuid.NewString(),
		LicensePlate: plate,
		PersonID:     person.ID,
		SpaceID:      space.ID,
		EntryTime:    now,
		Status:       SessionActive,
	}
	nextSpace := *space
	nextSpace.Status = SpaceOccupied
	nextSpace.UpdatedAt = now

	if m.store != nil {
		if err := m.store.SaveEntry(ctx, session, nextSpace); err != nil {
			return Session{}, fmt.Errorf("persist entry: %w", err)
		}
	}

	stored := session.clone()
	m.indexSessionLocked(&stored)
	*space = nextSpace
	return session, nil
}

// RegisterExit completes the session with the given id. A nil exitTime means
// now.
func (m *Manager) RegisterExit(ctx context.Context, sessionID string, exitTime *time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return m.closeLocked(ctx, session, SessionCompleted, exitTime)
}

// RegisterExitByPlate completes the active session of a vehicle.
func (m *Manager) RegisterExitByPlate(ctx context.Context, plate string, exitTime *time.Time) (Session, error) {
	plate = NormalizePlate(plate)

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.activeByPlate[plate]
	if !ok {
		if m.plateSessions[plate] > 0 {
			return Session{}, fmt.Errorf("%w: %s", ErrNoActiveSession, plate)
		}
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, plate)
	}
	return m.closeLocked(ctx, m.sessions[id], SessionCompleted, exitTime)
}

// CancelSession ends an active session without charging it.
func (m *Manager) CancelSession(ctx context.Context, sessionID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return m.closeLocked(ctx, session, SessionCancelled, nil)
}

func (m *Manager) closeLocked(ctx context.Context, session *Session, status SessionStatus, exitTime *time.Time) (Session, error) {
	if session.Status != SessionActive {
		return Session{}, fmt.Errorf("%w: session %s is %s", ErrNoActiveSession, session.ID, session.Status)
	}

	now := m.clock()
	exit := now
	if exitTime != nil {
		exit = exitTime.UTC().Truncate(time.Microsecond)
	}

	next := session.clone()
	next.Status = status
	switch status {
	case SessionCompleted:
		if exit.Before(session.EntryTime) {
			return Session{}, ErrExitBeforeEntry
		}
		next.BilledHours, next.Fee = m.tariff.Charge(session.EntryTime, exit)
	case SessionCancelled:
		if exit.Before(session.EntryTime) {
			exit = session.EntryTime
		}
	}
	next.ExitTime = &exit

	space := m.spaces[session.SpaceID]
	nextSpace := *space
	nextSpace.Status = SpaceAvailable
	nextSpace.UpdatedAt = now

	if m.store != nil {
		if err := m.store.SaveClose(ctx, next, nextSpace); err != nil {
			return Session{}, fmt.Errorf("persist exit: %w", err)
		}
	}

	*session = next
	delete(m.activeByPlate, session.LicensePlate)
	delete(m.activeBySpace, session.SpaceID)
	*space = nextSpace
	return next.clone(), nil
}

func (m *Manager) resolvePerson(ctx context.Context, req EntryRequest) (Person, error) {
	if req.DNI != "" {
		return m.directory.FindByDNI(ctx, strings.TrimSpace(req.DNI))
	}
	return m.directory.FindByID(ctx, req.PersonID)
}

func (m *Manager) resolveSpaceLocked(req EntryRequest) (*Space, error) {
	id := req.SpaceID
	if id == "" {
		id = m.spaceByCode[strings.ToUpper(strings.TrimSpace(req.SpaceCode))]
	}
	space, ok := m.spaces[id]
	if !ok {
		return nil, ErrSpaceNotFound
	}
	return space, nil
}

func (m *Manager) indexSessionLocked(session *Session) {
	m.sessions[session.ID] = session
	m.plateSessions[session.LicensePlate]++
	m.spaceRefs[session.SpaceID]++
	if session.Status == SessionActive {
		m.activeByPlate[session.LicensePlate] = session.ID
		m.activeBySpace[session.SpaceID] = session.ID
	}
}

func (m *Manager) Session(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session.clone(), nil
}

// ActiveSessionByPlate returns the session currently holding a space for plate.
func (m *Manager) ActiveSessionByPlate(plate string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.activeByPlate[NormalizePlate(plate)]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return m.sessions[id].clone(), nil
}

func (m *Manager) Space(id string) (Space, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	space, ok := m.spaces[id]
	if !ok {
		return Space{}, ErrSpaceNotFound
	}
	return *space, nil
}

func (m *Manager) SpaceByCode(code string) (Space, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.spaceByCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Space{}, ErrSpaceNotFound
	}
	return *m.spaces[id], nil
}

// ListSessions returns sessions ordered by entry time. An empty status
// returns every session.
func (m *Manager) ListSessions(status SessionStatus) []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if status != "" && s.Status != status {
			continue
		}
		sessions = append(sessions, s.clone())
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].EntryTime.Equal(sessions[j].EntryTime) {
			return sessions[i].EntryTime.Before(sessions[j].EntryTime)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// ListSpaces returns the spaces matching filter ordered by floor and code.
func (m *Manager) ListSpaces(filter SpaceFilter) []Space {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*Space, 0, len(m.spaces))
	for _, s := range m.spaces {
		if filter.matches(s) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return spaceLess(matched[i], matched[j]) })

	spaces := make([]Space, len(matched))
	for i, s := range matched {
		spaces[i] = *s
	}
	return spaces
}

// CheckInvariants verifies that every occupied space is held by exactly one
// active session and that no plate has more than one active session.
func (m *Manager) CheckInvariants() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkInvariantsLocked()
}

func (m *Manager) checkInvariantsLocked() error {
	activeBySpace := make(map[string]int)
	activeByPlate := make(map[string]int)
	for _, s := range m.sessions {
		if _, ok := m.spaces[s.SpaceID]; !ok {
			return fmt.Errorf("session %s references unknown space %s", s.ID, s.SpaceID)
		}
		if s.Status == SessionActive {
			activeBySpace[s.SpaceID]++
			activeByPlate[s.LicensePlate]++
		}
	}

	for plate, n := range activeByPlate {
		if n > 1 {
			return fmt.Errorf("plate %s has %d active sessions", plate, n)
		}
	}
	for id, space := range m.spaces {
		n := activeBySpace[id]
		if n > 1 {
			return fmt.Errorf("space %s has %d active sessions", space.Code, n)
		}
		if (space.Status == SpaceOccupied) != (n == 1) {
			return fmt.Errorf("space %s is %s with %d active sessions", space.Code, space.Status, n)
		}
	}
	return nil
}
