package main

import (
	"time"

	"github.com/google/uuid"

	"saaskit/internal/profiles"
)

// seedAdminID is stable so a local token can target the demo admin.
var seedAdminID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

// seedLocalProfiles returns demo profiles spread over the last six weeks so
// the admin metrics have something to show.
func seedLocalProfiles(now time.Time) []profiles.Profile {
	name := func(s string) *string { return &s }
	daysAgo := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	demo := []struct {
		email      string
		fullName   *string
		role       profiles.Role
		subscriber bool
		terms      bool
		age        int
	}{
		{"admin@saaskit.local", name("Camille Admin"), profiles.RoleAdmin, true, true, 40},
		{"lea.martin@example.com", name("Léa Martin"), profiles.RoleUser, true, true, 33},
		{"hugo.bernard@example.com", name("Hugo Bernard"), profiles.RoleUser, false, true, 21},
		{"chloe.petit@example.com", nil, profiles.RoleUser, false, true, 12},
		{"lucas.durand@example.com", name("Lucas Durand"), profiles.RoleUser, true, true, 6},
		{"emma.leroy@example.com", name("Emma Leroy"), profiles.RoleUser, false, true, 3},
		{"nathan.moreau@example.com", nil, profiles.RoleUser, false, false, 1},
		{"jade.simon@example.com", name("Jade Simon"), profiles.RoleUser, false, false, 0},
	}

	out := make([]profiles.Profile, 0, len(demo))
	for i, d := range demo {
		id := uuid.New()
		if i == 0 {
			id = seedAdminID
		}
		created := daysAgo(d.age)
		var lastActive *time.Time
		if d.terms {
			at := created.Add(2 * time.Hour)
			lastActive = &at
		}
		out = append(out, profiles.Profile{
			ID:               id,
			Email:            d.email,
			FullName:         d.fullName,
			Role:             d.role,
			IsSubscriber:     d.subscriber,
			HasAcceptedTerms: d.terms,
			LastActiveAt:     lastActive,
			CreatedAt:        created,
			UpdatedAt:        created,
		})
	}
	return out
}
