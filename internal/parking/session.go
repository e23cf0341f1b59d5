package parking

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

type Session struct {
	ID           string        `json:"id"`
	LicensePlate string        `json:"license_plate"`
	PersonID     int64         `json:"person_id"`
	SpaceID      string        `json:"space_id"`
	EntryTime    time.Time     `json:"entry_time"`
	ExitTime     *time.Time    `json:"exit_time"`
	BilledHours  int64         `json:"billed_hours"`
	Fee          Money         `json:"fee_amount"`
	Status       SessionStatus `json:"status"`
}

func (s Session) IsActive() bool {
	return s.Status == SessionActive
}

// Duration is the time spent in the space, or zero while active.
func (s Session) Duration() time.Duration {
	if s.ExitTime == nil {
		return 0
	}
	return s.ExitTime.Sub(s.EntryTime)
}

func (s Session) clone() Session {
	if s.ExitTime != nil {
		t := *s.ExitTime
		s.ExitTime = &t
	}
	return s
}

// EntryRequest registers a vehicle into a space. The person is looked up by
// DNI when set, otherwise by PersonID. The space is looked up by SpaceID when
// set, otherwise by SpaceCode.
type EntryRequest struct {
	LicensePlate            string
	PersonID                int64
	DNI                     string
	SpaceID                 string
	SpaceCode               string
	RequiresAccessibleSpace bool
}
