package profiles

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileAt(email string, role Role, created time.Time) Profile {
	return Profile{ID: uuid.New(), Email: email, Role: role, CreatedAt: created}
}

func TestFilterComposesRoleAndSearch(t *testing.T) {
	now := time.Now()
	list := []Profile{
		profileAt("bob@example.com", RoleAdmin, now),
		profileAt("alice@example.com", RoleAdmin, now),
		profileAt("bobby@example.com", RoleUser, now),
		{ID: uuid.New(), Email: "x@example.com", FullName: strPtr("Big BOB"), Role: RoleAdmin},
	}

	got := Filter(list, FilterOptions{Role: RoleFilterAdmin, Search: "bob"})
	require.Len(t, got, 2)
	assert.Equal(t, "bob@example.com", got[0].Email)
	assert.Equal(t, "x@example.com", got[1].Email)
}

func TestFilterAllAndEmptySearchKeepsEverything(t *testing.T) {
	list := []Profile{profileAt("a@x.io", RoleUser, time.Now()), profileAt("b@x.io", RoleAdmin, time.Now())}
	assert.Len(t, Filter(list, FilterOptions{Role: RoleFilterAll}), 2)
	assert.Len(t, Filter(list, FilterOptions{}), 2)
	assert.Len(t, Filter(list, FilterOptions{Role: RoleFilterUser, Search: "  "}), 1)
}

func TestParseRoleFilter(t *testing.T) {
	f, err := ParseRoleFilter("")
	require.NoError(t, err)
	assert.Equal(t, RoleFilterAll, f)

	f, err = ParseRoleFilter("Admin")
	require.NoError(t, err)
	assert.Equal(t, RoleFilterAdmin, f)

	_, err = ParseRoleFilter("owner")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGrowthSeriesIsDenseWithEdgeOffsets(t *testing.T) {
	now := time.Date(2024, 5, 30, 15, 0, 0, 0, time.UTC)
	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	list := []Profile{
		profileAt("a@x.io", RoleUser, first),
		profileAt("b@x.io", RoleUser, now.Add(-time.Hour)),
		profileAt("c@x.io", RoleUser, now.Add(-2*time.Hour)),
		profileAt("old@x.io", RoleUser, first.AddDate(0, 0, -1)),
	}

	series := GrowthSeries(list, now, 30)
	require.Len(t, series, 30)
	assert.Equal(t, "2024-05-01", series[0].Date)
	assert.Equal(t, "2024-05-30", series[29].Date)
	assert.Equal(t, 1, series[0].Count)
	assert.Equal(t, 2, series[29].Count)
	for i := 1; i < 29; i++ {
		assert.Zero(t, series[i].Count, "day %d", i)
	}
}

func TestGrowthSeriesWithoutSignups(t *testing.T) {
	series := GrowthSeries(nil, time.Now(), 30)
	require.Len(t, series, 30)
	for _, p := range series {
		assert.Zero(t, p.Count)
	}
	assert.Empty(t, GrowthSeries(nil, time.Now(), 0))
}

func TestSignupMetricsWindows(t *testing.T) {
	// Wednesday.
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	list := []Profile{
		profileAt("today@x.io", RoleUser, now.Add(-time.Hour)),
		profileAt("monday@x.io", RoleUser, time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC)),
		profileAt("lastfri@x.io", RoleUser, time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)),
		profileAt("month@x.io", RoleUser, time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)),
		profileAt("april@x.io", RoleUser, time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC)),
	}

	s := SignupMetrics(list, now)
	assert.Equal(t, 1, s.Today)
	assert.Equal(t, 3, s.Week)
	assert.Equal(t, 2, s.ThisWeek)
	assert.Equal(t, 4, s.ThisMonth)
}

func TestSummarizeCountsAdminsAndSubscribers(t *testing.T) {
	list := []Profile{
		{Role: RoleAdmin, IsSubscriber: true},
		{Role: RoleUser, IsSubscriber: true},
		{Role: RoleUser},
	}
	assert.Equal(t, Totals{Total: 3, Admins: 1, Subscribers: 2}, Summarize(list))
}

func TestComputeMetricsUsesThirtyDayWindow(t *testing.T) {
	m := ComputeMetrics(nil, time.Now())
	assert.Len(t, m.Growth, GrowthWindowDays)
}
