package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// Sunday 2026-10-18 08:00 UTC.
var fixedNow = time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)

var (
	thursday = civil.Date{Year: 2026, Month: time.October, Day: 22}
	saturday = civil.Date{Year: 2026, Month: time.October, Day: 24}
	sunday   = civil.Date{Year: 2026, Month: time.October, Day: 18}
)

func at(hour, minute int) civil.Time { return civil.Time{Hour: hour, Minute: minute} }

func newTestRanker(t *testing.T, store *appointments.MemoryStore, now time.Time, opts ...RankerOption) *Ranker {
	t.Helper()
	clock := func() time.Time { return now }
	catalog := scheduling.DefaultCatalog()
	extractor := scheduling.NewExtractor(catalog, scheduling.WithClock(clock), scheduling.WithHorizonDays(30))
	predictor, err := scheduling.NewPredictor(scheduling.DefaultTables(), catalog, scheduling.WithPredictorLogger(logging.Discard()))
	require.NoError(t, err)
	var conflicts ConflictChecker
	if store != nil {
		conflicts = store
	}
	generator := NewGenerator(DefaultWorkingHours(), conflicts, WithGeneratorClock(clock, time.UTC))
	opts = append([]RankerOption{WithRankerLogger(logging.Discard())}, opts...)
	return NewRanker(extractor, predictor, generator, opts...)
}

func book(t *testing.T, store *appointments.MemoryStore, d civil.Date, tm civil.Time) {
	t.Helper()
	_, err := store.Create(context.Background(), appointments.NewAppointment{
		Patient: appointments.Patient{Name: "Booked"},
		Service: scheduling.Consultation,
		Date:    d,
		Time:    tm,
	})
	require.NoError(t, err)
}

func times(list List) []civil.Time {
	out := make([]civil.Time, 0, len(list))
	for _, rec := range list {
		out = append(out, rec.Slot.Time)
	}
	return out
}

func TestRecommendOrdersByWaitThenTime(t *testing.T) {
	r := newTestRanker(t, appointments.NewMemoryStore(1), fixedNow)

	list, err := r.Recommend(context.Background(), scheduling.Consultation, thursday, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []civil.Time{at(16, 0), at(16, 30), at(12, 0)}, times(list))
	assert.Equal(t, 22.0, list[0].Prediction.WaitMinutes)
	assert.Equal(t, 28.0, list[2].Prediction.WaitMinutes)
	assert.Equal(t, scheduling.TierModerate, list[0].Prediction.Tier)
}

func TestRecommendIsStableAndSorted(t *testing.T) {
	r := newTestRanker(t, appointments.NewMemoryStore(1), fixedNow)
	ctx := context.Background()

	for _, svc := range scheduling.DefaultCatalog().Services() {
		first, err := r.Recommend(ctx, svc, thursday, 20)
		require.NoError(t, err)
		second, err := r.Recommend(ctx, svc, thursday, 20)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Len(t, first, 16)
		for i := 1; i < len(first); i++ {
			prev, cur := first[i-1], first[i]
			require.LessOrEqual(t, first[0].Prediction.WaitMinutes, cur.Prediction.WaitMinutes)
			if prev.Prediction.WaitMinutes == cur.Prediction.WaitMinutes {
				require.True(t, prev.Slot.Less(cur.Slot), "tie at %s/%s not ordered by time", prev.Slot, cur.Slot)
			} else {
				require.Less(t, prev.Prediction.WaitMinutes, cur.Prediction.WaitMinutes)
			}
		}
	}
}

func TestBusiestReversesRanking(t *testing.T) {
	r := newTestRanker(t, appointments.NewMemoryStore(1), fixedNow)
	ctx := context.Background()

	busiest, err := r.Busiest(ctx, scheduling.Consultation, thursday, 2)
	require.NoError(t, err)
	assert.Equal(t, []civil.Time{at(15, 30), at(15, 0)}, times(busiest))
	assert.Equal(t, 30.0, busiest[0].Prediction.WaitMinutes)

	least, err := r.LeastBusy(ctx, scheduling.Consultation, thursday, 2)
	require.NoError(t, err)
	assert.Equal(t, []civil.Time{at(16, 0), at(16, 30)}, times(least))
}

func TestRecommendRejectsInvalidInput(t *testing.T) {
	r := newTestRanker(t, appointments.NewMemoryStore(1), fixedNow)
	ctx := context.Background()

	_, err := r.Recommend(ctx, scheduling.Consultation, thursday, 0)
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
	_, err = r.Busiest(ctx, scheduling.Consultation, thursday, -1)
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
	_, err = r.Recommend(ctx, "dentistry", thursday, 3)
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
	_, err = r.Recommend(ctx, scheduling.Consultation, sunday.AddDays(-1), 3)
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
	_, err = r.Recommend(ctx, scheduling.Consultation, sunday.AddDays(31), 3)
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
}

func TestRecommendSkipsBookedSlots(t *testing.T) {
	store := appointments.NewMemoryStore(1)
	book(t, store, thursday, at(16, 0))
	r := newTestRanker(t, store, fixedNow)

	list, err := r.Recommend(context.Background(), scheduling.Consultation, thursday, 2)
	require.NoError(t, err)
	assert.Equal(t, []civil.Time{at(16, 30), at(12, 0)}, times(list))
}

func TestRecommendFullyBookedDayIsEmpty(t *testing.T) {
	store := appointments.NewMemoryStore(1)
	for m := 9 * 60; m < 17*60; m += 30 {
		book(t, store, thursday, at(m/60, m%60))
	}
	r := newTestRanker(t, store, fixedNow)

	list, err := r.Recommend(context.Background(), scheduling.Consultation, thursday, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecommendWithOccupancy(t *testing.T) {
	store := appointments.NewMemoryStore(1)
	book(t, store, thursday, at(16, 0))
	r := newTestRanker(t, store, fixedNow, WithOccupancy(NewStoreOccupancy(store, 1, 30)))

	list, err := r.Recommend(context.Background(), scheduling.Consultation, thursday, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	// 16:30 is half booked for the hour: 22 × 1.25.
	assert.Equal(t, at(16, 30), list[0].Slot.Time)
	assert.Equal(t, 27.5, list[0].Prediction.WaitMinutes)

	pred, err := r.PredictSingle(context.Background(), scheduling.Consultation, thursday, at(16, 30))
	require.NoError(t, err)
	assert.Equal(t, list[0].Prediction, pred)
}

type failingOccupancy struct{}

func (failingOccupancy) HourlyOccupancy(context.Context, civil.Date) (map[int]float64, error) {
	return nil, errors.New("replica lagging")
}

func TestRecommendIgnoresOccupancyFailure(t *testing.T) {
	r := newTestRanker(t, appointments.NewMemoryStore(1), fixedNow, WithOccupancy(failingOccupancy{}))
	list, err := r.Recommend(context.Background(), scheduling.Consultation, thursday, 1)
	require.NoError(t, err)
	assert.Equal(t, 22.0, list[0].Prediction.WaitMinutes)
}

func TestPredictSingleMatchesRanking(t *testing.T) {
	r := newTestRanker(t, appointments.NewMemoryStore(1), fixedNow)
	ctx := context.Background()

	list, err := r.Recommend(ctx, scheduling.Checkup, saturday, 16)
	require.NoError(t, err)
	for _, rec := range list {
		pred, err := r.PredictSingle(ctx, scheduling.Checkup, saturday, rec.Slot.Time)
		require.NoError(t, err)
		assert.Equal(t, rec.Prediction, pred)
	}

	pred, err := r.PredictSingle(ctx, scheduling.Consultation, thursday, at(7, 0))
	require.NoError(t, err)
	assert.Equal(t, 18.0, pred.WaitMinutes)

	_, err = r.PredictSingle(ctx, scheduling.Consultation, sunday, at(7, 0))
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
}

func TestCandidatesSkipPastSlots(t *testing.T) {
	now := time.Date(2026, time.October, 18, 12, 10, 0, 0, time.UTC)
	g := NewGenerator(DefaultWorkingHours(), nil, WithGeneratorClock(func() time.Time { return now }, time.UTC))

	slots, err := g.Candidates(context.Background(), sunday, scheduling.Checkup, 30)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, at(12, 30), slots[0].Time)
	assert.Equal(t, at(16, 30), slots[len(slots)-1].Time)
	assert.Len(t, slots, 9)

	again, err := g.Candidates(context.Background(), sunday, scheduling.Checkup, 30)
	require.NoError(t, err)
	assert.Equal(t, slots, again)

	_, err = g.Candidates(context.Background(), sunday, scheduling.Checkup, 0)
	require.ErrorIs(t, err, scheduling.ErrInvalidInput)
}

func TestCandidatesGranularity(t *testing.T) {
	g := NewGenerator(DefaultWorkingHours(), nil, WithGeneratorClock(func() time.Time { return fixedNow }, time.UTC))
	slots, err := g.Candidates(context.Background(), thursday, scheduling.Checkup, 45)
	require.NoError(t, err)
	// 09:00 through 16:30 in 45 minute steps.
	assert.Len(t, slots, 11)
	assert.Equal(t, at(16, 30), slots[len(slots)-1].Time)
}

func TestParseWorkingHours(t *testing.T) {
	wh, err := ParseWorkingHours("08:30", "18:00")
	require.NoError(t, err)
	assert.True(t, wh.Contains(at(8, 30)))
	assert.False(t, wh.Contains(at(18, 0)))

	_, err = ParseWorkingHours("17:00", "09:00")
	require.Error(t, err)
	_, err = ParseWorkingHours("nine", "17:00")
	require.Error(t, err)
}

func TestStoreOccupancyUnevenGranularity(t *testing.T) {
	store := appointments.NewMemoryStore(1)
	book(t, store, thursday, at(9, 0))

	cases := []struct {
		granularity int
		want        float64
	}{
		{granularity: 45, want: 0.75},
		{granularity: 7, want: 7.0 / 60.0},
		{granularity: 30, want: 0.5},
		{granularity: 0, want: 1},
	}
	for _, tc := range cases {
		occ, err := NewStoreOccupancy(store, 1, tc.granularity).HourlyOccupancy(context.Background(), thursday)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, occ[9], 1e-9, "granularity %d", tc.granularity)
	}
}
