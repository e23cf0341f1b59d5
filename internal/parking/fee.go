package parking

import "time"

// DefaultHourlyRate is 5.00 per started hour.
const DefaultHourlyRate Money = 500

type Tariff struct {
	HourlyRate Money
}

// BillableHours rounds d up to whole hours with a minimum of one hour.
func BillableHours(d time.Duration) int64 {
	hours := int64(d / time.Hour)
	if d%time.Hour > 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours
}

// Charge returns the billed hours and fee for a stay from entry to exit.
func (t Tariff) Charge(entry, exit time.Time) (int64, Money) {
	hours := BillableHours(exit.Sub(entry))
	return hours, Money(hours) * t.HourlyRate
}
