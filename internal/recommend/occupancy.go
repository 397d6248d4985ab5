package recommend

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
)

// OccupancySource reports the booked fraction of capacity per hour of a day.
type OccupancySource interface {
	HourlyOccupancy(ctx context.Context, date civil.Date) (map[int]float64, error)
}

// AppointmentLister is the read side of the appointment store.
type AppointmentLister interface {
	List(ctx context.Context, filter appointments.Filter) ([]appointments.Appointment, error)
}

// StoreOccupancy derives occupancy from confirmed appointments.
type StoreOccupancy struct {
	lister  AppointmentLister
	perHour float64
}

// NewStoreOccupancy sizes an hour as 60/granularity slots of capacity bookings
// each. Steps that do not divide an hour give a fractional slot count.
func NewStoreOccupancy(lister AppointmentLister, capacity, granularityMinutes int) *StoreOccupancy {
	if lister == nil {
		panic("recommend: appointment lister cannot be nil")
	}
	if capacity <= 0 {
		capacity = 1
	}
	if granularityMinutes <= 0 || granularityMinutes > 60 {
		granularityMinutes = 60
	}
	return &StoreOccupancy{
		lister:  lister,
		perHour: 60.0 / float64(granularityMinutes) * float64(capacity),
	}
}

func (o *StoreOccupancy) HourlyOccupancy(ctx context.Context, date civil.Date) (map[int]float64, error) {
	booked, err := o.lister.List(ctx, appointments.Filter{Date: &date, Status: appointments.StatusConfirmed})
	if err != nil {
		return nil, fmt.Errorf("recommend: load occupancy: %w", err)
	}
	counts := make(map[int]int)
	for _, a := range booked {
		counts[a.Time.Hour]++
	}
	out := make(map[int]float64, len(counts))
	for hour, n := range counts {
		frac := float64(n) / o.perHour
		if frac > 1 {
			frac = 1
		}
		out[hour] = frac
	}
	return out, nil
}
