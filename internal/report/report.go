// Package report derives read-only statistics from parking sessions and
// spaces. Nothing here mutates manager state.
package report

import (
	"fmt"
	"sort"
	"time"

	"parking-manager/internal/parking"
)

type FloorOccupancy struct {
	Floor       parking.Floor `json:"floor"`
	Total       int           `json:"total"`
	Available   int           `json:"available"`
	Occupied    int           `json:"occupied"`
	Maintenance int           `json:"maintenance"`
}

type OccupancySummary struct {
	Total         int              `json:"total"`
	Available     int              `json:"available"`
	Occupied      int              `json:"occupied"`
	Maintenance   int              `json:"maintenance"`
	OccupancyRate float64          `json:"occupancy_rate"`
	Floors        []FloorOccupancy `json:"floors"`
}

// Occupancy counts spaces per status, overall and per floor.
func Occupancy(spaces []parking.Space) OccupancySummary {
	var summary OccupancySummary
	byFloor := make(map[parking.Floor]*FloorOccupancy)

	for _, s := range spaces {
		f, ok := byFloor[s.Floor]
		if !ok {
			f = &FloorOccupancy{Floor: s.Floor}
			byFloor[s.Floor] = f
		}
		f.Total++
		summary.Total++

		switch s.Status {
		case parking.SpaceAvailable:
			f.Available++
			summary.Available++
		case parking.SpaceOccupied:
			f.Occupied++
			summary.Occupied++
		case parking.SpaceMaintenance:
			f.Maintenance++
			summary.Maintenance++
		}
	}

	if usable := summary.Total - summary.Maintenance; usable > 0 {
		summary.OccupancyRate = round2(float64(summary.Occupied) / float64(usable))
	}

	summary.Floors = make([]FloorOccupancy, 0, len(byFloor))
	for _, floor := range parking.Floors {
		if f, ok := byFloor[floor]; ok {
			summary.Floors = append(summary.Floors, *f)
			delete(byFloor, floor)
		}
	}
	for _, f := range byFloor {
		summary.Floors = append(summary.Floors, *f)
	}
	return summary
}

// Range bounds sessions by entry time. Zero bounds are open; To is inclusive.
type Range struct {
	From time.Time `json:"start"`
	To   time.Time `json:"end"`
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

type PeriodStats struct {
	Period             string        `json:"period"`
	Sessions           int           `json:"sessions"`
	Revenue            parking.Money `json:"revenue"`
	AvgDurationMinutes int64         `json:"avg_duration_minutes"`
	Vehicles           int           `json:"vehicles"`
}

type Summary struct {
	TotalSessions       int           `json:"total_sessions"`
	Completed           int           `json:"completed"`
	Cancelled           int           `json:"cancelled"`
	TotalVehicles       int           `json:"total_vehicles"`
	AvgDurationMinutes  int64         `json:"avg_duration_minutes"`
	Revenue             parking.Money `json:"revenue"`
	AvgSessionsPerSpace float64       `json:"avg_sessions_per_space"`
	PeakDay             string        `json:"peak_day,omitempty"`
	PeakHour            string        `json:"peak_hour,omitempty"`
	Range               Range         `json:"date_range"`
}

type Stats struct {
	Summary Summary       `json:"summary"`
	Daily   []PeriodStats `json:"daily"`
	Monthly []PeriodStats `json:"monthly"`
}

type bucket struct {
	sessions int
	revenue  parking.Money
	duration time.Duration
	plates   map[string]struct{}
}

func (b *bucket) add(s parking.Session) {
	if b.plates == nil {
		b.plates = make(map[string]struct{})
	}
	b.sessions++
	b.revenue += s.Fee
	b.duration += s.Duration()
	b.plates[s.LicensePlate] = struct{}{}
}

func (b *bucket) stats(period string) PeriodStats {
	return PeriodStats{
		Period:             period,
		Sessions:           b.sessions,
		Revenue:            b.revenue,
		AvgDurationMinutes: avgMinutes(b.duration, b.sessions),
		Vehicles:           len(b.plates),
	}
}

// Build aggregates closed sessions (completed or cancelled) whose entry time
// falls in r. Days and hours are taken in UTC. Ties for the peak day or hour
// go to the earliest one.
func Build(sessions []parking.Session, spaceCount int, r Range) Stats {
	var (
		total   bucket
		daily   = make(map[string]*bucket)
		monthly = make(map[string]*bucket)
		hourly  [24]int
		summary = Summary{Range: r}
	)

	for _, s := range sessions {
		if s.Status == parking.SessionActive || !r.contains(s.EntryTime) {
			continue
		}
		switch s.Status {
		case parking.SessionCompleted:
			summary.Completed++
		case parking.SessionCancelled:
			summary.Cancelled++
		}

		entry := s.EntryTime.UTC()
		total.add(s)
		bucketFor(daily, entry.Format(time.DateOnly)).add(s)
		bucketFor(monthly, entry.Format("2006-01")).add(s)
		hourly[entry.Hour()]++
	}

	summary.TotalSessions = total.sessions
	summary.TotalVehicles = len(total.plates)
	summary.Revenue = total.revenue
	summary.AvgDurationMinutes = avgMinutes(total.duration, total.sessions)
	if spaceCount > 0 {
		summary.AvgSessionsPerSpace = round2(float64(total.sessions) / float64(spaceCount))
	}

	stats := Stats{
		Daily:   sortedPeriods(daily),
		Monthly: sortedPeriods(monthly),
	}

	peak := 0
	for _, day := range stats.Daily {
		if day.Sessions > peak {
			peak = day.Sessions
			summary.PeakDay = day.Period
		}
	}

	peak = 0
	for hour, n := range hourly {
		if n > peak {
			peak = n
			summary.PeakHour = fmt.Sprintf("%02d:00", hour)
		}
	}

	stats.Summary = summary
	return stats
}

func bucketFor(buckets map[string]*bucket, key string) *bucket {
	b, ok := buckets[key]
	if !ok {
		b = &bucket{}
		buckets[key] = b
	}
	return b
}

func sortedPeriods(buckets map[string]*bucket) []PeriodStats {
	periods := make([]PeriodStats, 0, len(buckets))
	for key, b := range buckets {
		periods = append(periods, b.stats(key))
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	return periods
}

func avgMinutes(total time.Duration, n int) int64 {
	if n == 0 {
		return 0
	}
	return int64((total / time.Duration(n)).Round(time.Minute) / time.Minute)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
