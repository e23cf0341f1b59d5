package parking

import (
	"strings"
	"time"
)

type SpaceStatus string

const (
	SpaceAvailable   SpaceStatus = "available"
	SpaceOccupied    SpaceStatus = "occupied"
	SpaceMaintenance SpaceStatus = "maintenance"
)

func (s SpaceStatus) Valid() bool {
	switch s {
	case SpaceAvailable, SpaceOccupied, SpaceMaintenance:
		return true
	}
	return false
}

// Floor is a physical level of the building.
type Floor string

const (
	FloorSS Floor = "SS"
	FloorS1 Floor = "S1"
)

// Floors lists the known floors from top to bottom.
var Floors = []Floor{FloorSS, FloorS1}

func (f Floor) Valid() bool {
	return f.rank() >= 0
}

func (f Floor) rank() int {
	for i, known := range Floors {
		if f == known {
			return i
		}
	}
	return -1
}

// ParseFloor accepts a floor level in any letter case.
func ParseFloor(s string) (Floor, error) {
	f := Floor(strings.ToUpper(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", ErrInvalidFloor
	}
	return f, nil
}

type Space struct {
	ID           string      `json:"id"`
	Code         string      `json:"code"`
	Floor        Floor       `json:"floor_level"`
	IsAccessible bool        `json:"is_accessible"`
	Status       SpaceStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (s Space) IsAvailable() bool {
	return s.Status == SpaceAvailable
}

// NewSpace describes a space to provision.
type NewSpace struct {
	Code         string
	Floor        Floor
	IsAccessible bool
}

// SpaceFilter narrows ListSpaces. Zero fields match everything.
type SpaceFilter struct {
	Floor      Floor
	Status     SpaceStatus
	Accessible *bool
}

func (f SpaceFilter) matches(s *Space) bool {
	if f.Floor != "" && s.Floor != f.Floor {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Accessible != nil && s.IsAccessible != *f.Accessible {
		return false
	}
	return true
}

func spaceLess(a, b *Space) bool {
	if ra, rb := a.Floor.rank(), b.Floor.rank(); ra != rb {
		return ra < rb
	}
	return a.Code < b.Code
}
