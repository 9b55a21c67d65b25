package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISOWeekOf(t *testing.T) {
	// Jan 1 2027 is a Friday, so it belongs to ISO week 53 of 2026.
	y, w := ISOWeekOf(time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, 2026, y)
	assert.Equal(t, 53, w)

	// Sunday 23:00 UTC is already Monday in Auckland, one ISO week later.
	akl, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	sunday := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC)
	_, utcWeek := ISOWeekOf(sunday, time.UTC)
	_, aklWeek := ISOWeekOf(sunday, akl)
	assert.Equal(t, utcWeek+1, aklWeek)
}

func TestPowerDayLedgerRecordAndCheck(t *testing.T) {
	ctx := context.Background()
	ledger := NewPowerDayLedger(newFakePowerDayRepo())
	userID := primitive.NewObjectID()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	isoYear, isoWeek := ISOWeekOf(now, time.UTC)

	status, err := ledger.CheckAvailability(ctx, userID, now, time.UTC)
	require.NoError(t, err)
	assert.True(t, status.Available)
	assert.Equal(t, 0, status.UsedThisWeek)
	assert.Equal(t, PowerDayWeeklyLimit, status.Cap)

	for i := 0; i < PowerDayWeeklyLimit; i++ {
		ok, err := ledger.RecordUsage(ctx, userID, isoYear, isoWeek)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := ledger.RecordUsage(ctx, userID, isoYear, isoWeek)
	require.NoError(t, err)
	assert.False(t, ok, "third use in one week must be denied")

	status, err = ledger.CheckAvailability(ctx, userID, now, time.UTC)
	require.NoError(t, err)
	assert.False(t, status.Available)
	assert.Equal(t, PowerDayWeeklyLimit, status.UsedThisWeek)
}

func TestPowerDayLedgerResetsAcrossWeeks(t *testing.T) {
	ctx := context.Background()
	ledger := NewPowerDayLedger(newFakePowerDayRepo())
	userID := primitive.NewObjectID()

	monday := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	nextMonday := monday.AddDate(0, 0, 7)

	y1, w1 := ISOWeekOf(monday, time.UTC)
	for i := 0; i < PowerDayWeeklyLimit; i++ {
		ok, err := ledger.RecordUsage(ctx, userID, y1, w1)
		require.NoError(t, err)
		require.True(t, ok)
	}

	y2, w2 := ISOWeekOf(nextMonday, time.UTC)
	ok, err := ledger.RecordUsage(ctx, userID, y2, w2)
	require.NoError(t, err)
	assert.True(t, ok, "new ISO week starts with a fresh allowance")
}

func TestPowerDayLedgerReleaseRestoresAllowance(t *testing.T) {
	ctx := context.Background()
	repo := newFakePowerDayRepo()
	ledger := NewPowerDayLedger(repo)
	userID := primitive.NewObjectID()
	isoYear, isoWeek := 2026, 11

	for i := 0; i < PowerDayWeeklyLimit; i++ {
		ok, err := ledger.RecordUsage(ctx, userID, isoYear, isoWeek)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, ledger.ReleaseUsage(ctx, userID, isoYear, isoWeek))
	assert.Equal(t, PowerDayWeeklyLimit-1, repo.count(userID, isoYear, isoWeek))

	ok, err := ledger.RecordUsage(ctx, userID, isoYear, isoWeek)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPowerDayLedgerReleaseWithoutUsageIsNoop(t *testing.T) {
	ledger := NewPowerDayLedger(newFakePowerDayRepo())
	err := ledger.ReleaseUsage(context.Background(), primitive.NewObjectID(), 2026, 11)
	assert.NoError(t, err)
}

func TestPowerDayLedgerConcurrentUsageNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	repo := newFakePowerDayRepo()
	ledger := NewPowerDayLedger(repo)
	userID := primitive.NewObjectID()
	isoYear, isoWeek := 2026, 11

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.RecordUsage(ctx, userID, isoYear, isoWeek)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for ok := range results {
		if ok {
			granted++
		}
	}
	assert.Equal(t, PowerDayWeeklyLimit, granted)
	assert.Equal(t, PowerDayWeeklyLimit, repo.count(userID, isoYear, isoWeek))
}
