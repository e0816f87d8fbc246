package profiles

import (
	"strings"
	"time"
)

// RoleFilter narrows a listing by role. RoleFilterAll keeps everyone.
type RoleFilter string

const (
	RoleFilterAll   RoleFilter = "all"
	RoleFilterUser  RoleFilter = "user"
	RoleFilterAdmin RoleFilter = "admin"
)

// ParseRoleFilter accepts all, user or admin; empty means all.
func ParseRoleFilter(raw string) (RoleFilter, error) {
	switch RoleFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleFilterAll:
		return RoleFilterAll, nil
	case RoleFilterUser:
		return RoleFilterUser, nil
	case RoleFilterAdmin:
		return RoleFilterAdmin, nil
	}
	return "", validationErr("role filter must be one of: all, user, admin")
}

// FilterOptions combines a role filter and a free-text search with AND.
type FilterOptions struct {
	Role   RoleFilter
	Search string
}

// Filter returns the profiles matching opts, preserving input order. The
// search matches email or full name substrings, case-insensitively.
func Filter(list []Profile, opts FilterOptions) []Profile {
	query := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]Profile, 0, len(list))
	for _, p := range list {
		if opts.Role != "" && opts.Role != RoleFilterAll && string(p.Role) != string(opts.Role) {
			continue
		}
		if query != "" && !matchesSearch(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesSearch(p Profile, query string) bool {
	if strings.Contains(strings.ToLower(p.Email), query) {
		return true
	}
	return p.FullName != nil && strings.Contains(strings.ToLower(*p.FullName), query)
}

// Signups counts profiles created inside each reporting window.
type Signups struct {
	Today     int `json:"today"`
	Week      int `json:"week"`
	ThisWeek  int `json:"this_week"`
	ThisMonth int `json:"this_month"`
}

// SignupMetrics counts signups relative to now, in now's location. Week is
// the trailing seven days including today; ThisWeek starts on Sunday.
func SignupMetrics(list []Profile, now time.Time) Signups {
	today := startOfDay(now)
	trailingWeek := today.AddDate(0, 0, -6)
	calendarWeek := today.AddDate(0, 0, -int(today.Weekday()))
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var s Signups
	for _, p := range list {
		created := p.CreatedAt.In(now.Location())
		if created.After(now) {
			continue
		}
		if !created.Before(today) {
			s.Today++
		}
		if !created.Before(trailingWeek) {
			s.Week++
		}
		if !created.Before(calendarWeek) {
			s.ThisWeek++
		}
		if !created.Before(month) {
			s.ThisMonth++
		}
	}
	return s
}

// GrowthPoint is one day of the growth series.
type GrowthPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// GrowthSeries returns a dense, zero-filled day-by-day signup count over the
// trailing days ending today, oldest first.
func GrowthSeries(list []Profile, now time.Time, days int) []GrowthPoint {
	if days <= 0 {
		return []GrowthPoint{}
	}
	today := startOfDay(now)
	first := today.AddDate(0, 0, -(days - 1))

	series := make([]GrowthPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i).Format(time.DateOnly)
		series[i] = GrowthPoint{Date: day}
		index[day] = i
	}

	for _, p := range list {
		day := p.CreatedAt.In(now.Location()).Format(time.DateOnly)
		if i, ok := index[day]; ok {
			series[i].Count++
		}
	}
	return series
}

// Totals summarizes the collection.
type Totals struct {
	Total       int `json:"total"`
	Admins      int `json:"admins"`
	Subscribers int `json:"subscribers"`
}

// Summarize counts profiles, admins and subscribers.
func Summarize(list []Profile) Totals {
	t := Totals{Total: len(list)}
	for _, p := range list {
		if p.IsAdmin() {
			t.Admins++
		}
		if p.IsSubscriber {
			t.Subscribers++
		}
	}
	return t
}

// Metrics bundles the admin dashboard aggregates.
type Metrics struct {
	Signups Signups       `json:"signups"`
	Growth  []GrowthPoint `json:"growth"`
	Totals  Totals        `json:"totals"`
}

// GrowthWindowDays is the length of the admin growth chart.
const GrowthWindowDays = 30

// ComputeMetrics derives every admin aggregate from one listing.
func ComputeMetrics(list []Profile, now time.Time) Metrics {
	return Metrics{
		Signups: SignupMetrics(list, now),
		Growth:  GrowthSeries(list, now, GrowthWindowDays),
		Totals:  Summarize(list),
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
