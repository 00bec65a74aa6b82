package site

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Metro Portal", "metro_portal"},
		{"punctuation collapses", "City of Springfield - Procurement!", "city_of_springfield_procurement"},
		{"accents fold", "Ville de Montréal", "ville_de_montreal"},
		{"digits kept", "Region 9 Tenders", "region_9_tenders"},
		{"leading trailing stripped", "  (Official) Portal  ", "official_portal"},
		{"already slug", "metro_portal", "metro_portal"},
		{"only symbols", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestUniqueID(t *testing.T) {
	taken := map[string]bool{}
	isTaken := func(id string) bool { return taken[id] }

	require.Equal(t, "metro_portal", UniqueID("Metro Portal", isTaken))

	taken["metro_portal"] = true
	require.Equal(t, "metro_portal_2", UniqueID("Metro Portal", isTaken))

	taken["metro_portal_2"] = true
	require.Equal(t, "metro_portal_3", UniqueID("Metro Portal", isTaken))
}

func TestUniqueIDEmptySlugFallsBack(t *testing.T) {
	require.Equal(t, "site", UniqueID("!!!", func(string) bool { return false }))
}
