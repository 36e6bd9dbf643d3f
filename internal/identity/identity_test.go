package identity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveYear_ReferenceCycle(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2025, "Pantheons"},
		{2024, "Spartans"},
		{2023, "Titans"},
		{2022, "Vikings"},
		{2021, "Samurai"},
		{2020, "Knights"},
		{2019, "Pantheons"},
		{2018, "Spartans"},
		{0, "Vikings"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveYear(tt.year).Name, "year %d", tt.year)
	}
}

func TestResolveYear_SymmetricAroundAnchor(t *testing.T) {
	assert.Equal(t, "Spartans", ResolveYear(2026).Name)
	assert.Equal(t, ResolveYear(2024), ResolveYear(2026))

	for d := 0; d < 40; d++ {
		assert.Equal(t, ResolveYear(AnchorYear-d), ResolveYear(AnchorYear+d), "distance %d", d)
	}
}

func TestResolve_NilYearIsGenericAlumni(t *testing.T) {
	id := Resolve(nil)
	assert.Equal(t, "Alumni", id.Name)
	assert.Equal(t, "🎓", id.Icon)
	assert.Equal(t, "https://api.dicebear.com/9.x/glass/svg?seed=Alumni&backgroundColor=b0b0b0", id.BadgeURL)
}

func TestResolve_TotalForExtremeYears(t *testing.T) {
	for _, year := range []int{0, -1, 1, 9999, -9999, math.MaxInt, math.MinInt, math.MaxInt32, math.MinInt32} {
		y := year
		id := Resolve(&y)
		require.NotEmpty(t, id.Name, "year %d", year)
		require.NotEmpty(t, id.BadgeURL, "year %d", year)
		idx := Index(year)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(cohorts))
	}
}

func TestResolveYear_BadgeURLIsDeterministic(t *testing.T) {
	id := ResolveYear(2020)
	assert.Equal(t, "https://api.dicebear.com/9.x/glass/svg?seed=Knights&backgroundColor=4f46e5", id.BadgeURL)
	assert.Equal(t, id, ResolveYear(2020))
}

func TestResolver_CustomBadgeBase(t *testing.T) {
	r := NewResolver("http://badges.local/svg")
	id := r.ResolveYear(2023)
	assert.Equal(t, "http://badges.local/svg?seed=Titans&backgroundColor=2563eb", id.BadgeURL)
}

func TestIdentity_Label(t *testing.T) {
	assert.Equal(t, "Knights '20", ResolveYear(2020).Label(2020))
	assert.Equal(t, "Titans '05", ResolveYear(2005).Label(2005))
}
