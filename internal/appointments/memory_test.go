package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

var (
	testDate = civil.Date{Year: 2026, Month: time.October, Day: 22}
	nineAM   = civil.Time{Hour: 9}
)

func newBooking(name string, svc scheduling.ServiceType, d civil.Date, t civil.Time) NewAppointment {
	return NewAppointment{Patient: Patient{Name: name}, Service: svc, Date: d, Time: t, WaitEstimate: 20, Confidence: 0.8}
}

func TestMemoryStoreConflictRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)

	appt, err := store.Create(ctx, newBooking("Ada", scheduling.Consultation, testDate, nineAM))
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, StatusConfirmed, appt.Status)

	_, err = store.Create(ctx, newBooking("Grace", scheduling.Consultation, testDate, nineAM))
	require.ErrorIs(t, err, ErrConflict)

	conflict, err := store.HasConflict(ctx, testDate, nineAM, scheduling.Consultation)
	require.NoError(t, err)
	assert.True(t, conflict)

	_, err = store.Cancel(ctx, Selector{Date: testDate, Time: civil.Time{Hour: 10}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCancelFreesSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)
	_, err := store.Create(ctx, newBooking("Ada", scheduling.Checkup, testDate, nineAM))
	require.NoError(t, err)

	cancelled, err := store.Cancel(ctx, Selector{Date: testDate, Time: nineAM})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	_, err = store.Cancel(ctx, Selector{Date: testDate, Time: nineAM})
	require.ErrorIs(t, err, ErrNotFound)

	conflict, err := store.HasConflict(ctx, testDate, nineAM, scheduling.Checkup)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = store.Create(ctx, newBooking("Grace", scheduling.Checkup, testDate, nineAM))
	require.NoError(t, err)

	listed, err := store.List(ctx, Filter{Status: StatusCancelled})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Ada", listed[0].Patient.Name)
	assert.NotNil(t, listed[0].CancelledAt)
}

func TestMemoryStoreCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	_, err := store.Create(ctx, newBooking("A", scheduling.Consultation, testDate, nineAM))
	require.NoError(t, err)
	conflict, err := store.HasConflict(ctx, testDate, nineAM, scheduling.Consultation)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = store.Create(ctx, newBooking("B", scheduling.Surgery, testDate, nineAM))
	require.NoError(t, err)
	_, err = store.Create(ctx, newBooking("C", scheduling.Checkup, testDate, nineAM))
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)
	other := testDate.AddDays(1)
	for _, b := range []NewAppointment{
		newBooking("A", scheduling.Consultation, testDate, civil.Time{Hour: 11}),
		newBooking("B", scheduling.Checkup, testDate, nineAM),
		newBooking("C", scheduling.Consultation, other, nineAM),
	} {
		_, err := store.Create(ctx, b)
		require.NoError(t, err)
	}

	onDate, err := store.List(ctx, Filter{Date: &testDate})
	require.NoError(t, err)
	require.Len(t, onDate, 2)
	assert.Equal(t, "B", onDate[0].Patient.Name)
	assert.Equal(t, "A", onDate[1].Patient.Name)

	consults, err := store.List(ctx, Filter{Service: scheduling.Consultation})
	require.NoError(t, err)
	assert.Len(t, consults, 2)

	limited, err := store.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStoreRejectsInvalidBooking(t *testing.T) {
	_, err := NewMemoryStore(1).Create(context.Background(), newBooking(" ", scheduling.Consultation, testDate, nineAM))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduling.ErrInvalidInput))
}

func TestMemoryStoreConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, newBooking("P", scheduling.Consultation, testDate, nineAM))
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrConflict) {
				conflicts++
			} else if err == nil {
				ok++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, conflicts)
}

func TestMemoryStoreCancelSharedSlot(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	ada, err := store.Create(ctx, newBooking("Ada", scheduling.Checkup, testDate, nineAM))
	require.NoError(t, err)
	grace, err := store.Create(ctx, newBooking("Grace", scheduling.Consultation, testDate, nineAM))
	require.NoError(t, err)

	_, err = store.Cancel(ctx, Selector{Date: testDate, Time: nineAM})
	require.ErrorIs(t, err, ErrAmbiguous)
	assert.ErrorIs(t, err, scheduling.ErrInvalidInput)

	cancelled, err := store.Cancel(ctx, Selector{Date: testDate, Time: nineAM, PatientName: "grace"})
	require.NoError(t, err)
	assert.Equal(t, grace.ID, cancelled.ID)

	confirmed, err := store.List(ctx, Filter{Status: StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, ada.ID, confirmed[0].ID)

	cancelled, err = store.Cancel(ctx, Selector{ID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, "Ada", cancelled.Patient.Name)
	_, err = store.Cancel(ctx, Selector{ID: ada.ID})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Cancel(ctx, Selector{})
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
}

func TestMemoryStoreIgnoresSeconds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)
	appt, err := store.Create(ctx, newBooking("Ada", scheduling.Checkup, testDate, civil.Time{Hour: 10, Second: 30}))
	require.NoError(t, err)
	assert.Equal(t, civil.Time{Hour: 10}, appt.Time)

	_, err = store.Create(ctx, newBooking("Grace", scheduling.Checkup, testDate, civil.Time{Hour: 10}))
	require.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreReschedule(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)
	ada, err := store.Create(ctx, newBooking("Ada", scheduling.Checkup, testDate, nineAM))
	require.NoError(t, err)
	_, err = store.Create(ctx, newBooking("Grace", scheduling.Checkup, testDate, civil.Time{Hour: 10}))
	require.NoError(t, err)

	_, err = store.Reschedule(ctx, Move{ID: ada.ID, Date: testDate, Time: civil.Time{Hour: 10}})
	require.ErrorIs(t, err, ErrConflict)

	_, err = store.Reschedule(ctx, Move{ID: ada.ID, Date: testDate, Time: nineAM})
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)

	got, err := store.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Patient.Name)
	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	moved, err := store.Reschedule(ctx, Move{ID: ada.ID, Date: testDate, Time: civil.Time{Hour: 11}, WaitEstimate: 12, Confidence: 0.9})
	require.NoError(t, err)
	assert.Equal(t, civil.Time{Hour: 11}, moved.Time)
	require.NotNil(t, moved.PreviousDate)
	require.NotNil(t, moved.PreviousTime)
	assert.Equal(t, testDate, *moved.PreviousDate)
	assert.Equal(t, nineAM, *moved.PreviousTime)
	assert.NotNil(t, moved.RescheduledAt)
	assert.Equal(t, 12.0, moved.WaitEstimate)

	conflict, err := store.HasConflict(ctx, testDate, nineAM, scheduling.Checkup)
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = store.Reschedule(ctx, Move{ID: "missing", Date: testDate, Time: civil.Time{Hour: 12}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreStatsAndNext(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1)
	now := civil.DateTime{Date: testDate, Time: civil.Time{Hour: 9, Minute: 30}}

	_, err := store.Next(ctx, now)
	require.ErrorIs(t, err, ErrNotFound)

	past := newBooking("Past", scheduling.Checkup, testDate, nineAM)
	past.WaitEstimate = 10
	later := newBooking("Later", scheduling.Consultation, testDate.AddDays(1), nineAM)
	later.WaitEstimate = 30
	soon := newBooking("Soon", scheduling.Consultation, testDate, civil.Time{Hour: 11})
	soon.WaitEstimate = 21
	gone := newBooking("Gone", scheduling.Checkup, testDate, civil.Time{Hour: 12})
	for _, b := range []NewAppointment{past, later, soon, gone} {
		_, err := store.Create(ctx, b)
		require.NoError(t, err)
	}
	_, err = store.Cancel(ctx, Selector{Date: testDate, Time: civil.Time{Hour: 12}})
	require.NoError(t, err)

	stats, err := store.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Confirmed)
	assert.Equal(t, 2, stats.Upcoming)
	assert.Equal(t, 20.3, stats.AverageWait)
	assert.Equal(t, map[scheduling.ServiceType]int{scheduling.Checkup: 1, scheduling.Consultation: 2}, stats.ByService)

	next, err := store.Next(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "Soon", next.Patient.Name)

	empty, err := NewMemoryStore(1).Stats(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, empty.Confirmed)
	assert.Zero(t, empty.AverageWait)
	assert.NotNil(t, empty.ByService)
}
