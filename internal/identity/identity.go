// Package identity maps a graduation year to the cohort identity shown next to alumni names.
package identity

import (
	"fmt"
	"net/url"
)

// AnchorYear is the cohort that maps to the first identity in the cycle.
const AnchorYear = 2025

// DefaultBadgeBaseURL renders badges through the DiceBear "glass" style.
const DefaultBadgeBaseURL = "https://api.dicebear.com/9.x/glass/svg"

// Identity is the display identity of a cohort.
type Identity struct {
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Background string `json:"bg"`
	BadgeURL   string `json:"badge_url"`
}

type cohort struct {
	name, icon, color, bg, hex string
}

// Ordered from the anchor year backwards: 2025, 2024, ... 2020.
var cohorts = []cohort{
	{"Pantheons", "🏛️", "text-yellow-700", "bg-yellow-50", "eab308"},
	{"Spartans", "🛡️", "text-red-700", "bg-red-50", "dc2626"},
	{"Titans", "⚡", "text-blue-700", "bg-blue-50", "2563eb"},
	{"Vikings", "🪓", "text-green-700", "bg-green-50", "16a34a"},
	{"Samurai", "⚔️", "text-purple-700", "bg-purple-50", "9333ea"},
	{"Knights", "🏰", "text-indigo-700", "bg-indigo-50", "4f46e5"},
}

var generic = cohort{"Alumni", "🎓", "text-gray-600", "bg-gray-100", "b0b0b0"}

// Resolver resolves identities against a badge rendering service.
type Resolver struct {
	badgeBaseURL string
}

func NewResolver(badgeBaseURL string) *Resolver {
	if badgeBaseURL == "" {
		badgeBaseURL = DefaultBadgeBaseURL
	}
	return &Resolver{badgeBaseURL: badgeBaseURL}
}

var defaultResolver = NewResolver(DefaultBadgeBaseURL)

// Resolve returns the identity for year using the default badge service.
// A nil year yields the generic alumni identity.
func Resolve(year *int) Identity {
	return defaultResolver.Resolve(year)
}

// ResolveYear is Resolve for a known year.
func ResolveYear(year int) Identity {
	return defaultResolver.ResolveYear(year)
}

func (r *Resolver) Resolve(year *int) Identity {
	if year == nil {
		return r.build(generic)
	}
	return r.ResolveYear(*year)
}

// ResolveYear indexes the cohort cycle by |AnchorYear - year| mod len(cohorts).
// Years equally far on either side of the anchor share an identity.
func (r *Resolver) ResolveYear(year int) Identity {
	return r.build(cohorts[Index(year)])
}

// Index returns the position of year in the cohort cycle. It is total over int:
// the distance is taken in uint64 so extreme years cannot overflow.
func Index(year int) int {
	y := int64(year)
	var dist uint64
	if y <= AnchorYear {
		dist = uint64(AnchorYear) - uint64(y)
	} else {
		dist = uint64(y) - uint64(AnchorYear)
	}
	return int(dist % uint64(len(cohorts)))
}

func (r *Resolver) build(c cohort) Identity {
	return Identity{
		Name:       c.name,
		Icon:       c.icon,
		Color:      c.color,
		Background: c.bg,
		BadgeURL:   fmt.Sprintf("%s?seed=%s&backgroundColor=%s", r.badgeBaseURL, url.QueryEscape(c.name), c.hex),
	}
}

// Label renders the badge chip text, e.g. "Knights '20".
func (i Identity) Label(year int) string {
	yy := year % 100
	if yy < 0 {
		yy = -yy
	}
	return fmt.Sprintf("%s '%02d", i.Name, yy)
}
