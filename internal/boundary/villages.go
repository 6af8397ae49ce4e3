package boundary

import (
	"strings"

	"github.com/ppiankov/fratlas/internal/model"
)

type villageEntry struct {
	key string
	loc model.VillageLocation
}

// villageTable is the fixed coordinate table. Order matters: substring
// matching returns the first entry that matches.
var villageTable = []villageEntry{
	{"kachargaon", model.VillageLocation{Village: "Kachargaon", Lat: 20.5937, Lng: 78.9629, District: "Seoni", State: "Madhya Pradesh"}},
	{"mendha", model.VillageLocation{Village: "Mendha", Lat: 20.1376, Lng: 79.2963, District: "Gadchiroli", State: "Maharashtra"}},
	{"bamni", model.VillageLocation{Village: "Bamni", Lat: 21.8974, Lng: 79.6512, District: "Gondia", State: "Maharashtra"}},
	{"navegaon", model.VillageLocation{Village: "Navegaon", Lat: 21.0285, Lng: 79.2108, District: "Wardha", State: "Maharashtra"}},
	{"dhamangaon", model.VillageLocation{Village: "Dhamangaon", Lat: 20.7476, Lng: 77.3463, District: "Amravati", State: "Maharashtra"}},
	{"pench", model.VillageLocation{Village: "Pench", Lat: 21.6093, Lng: 79.2961, District: "Seoni", State: "Madhya Pradesh"}},
	{"tadoba", model.VillageLocation{Village: "Tadoba", Lat: 20.2091, Lng: 79.3370, District: "Chandrapur", State: "Maharashtra"}},
	{"chikhaldara", model.VillageLocation{Village: "Chikhaldara", Lat: 21.2667, Lng: 77.4667, District: "Amravati", State: "Maharashtra"}},
	{"melghat", model.VillageLocation{Village: "Melghat", Lat: 21.2500, Lng: 77.2500, District: "Amravati", State: "Maharashtra"}},
	{"satpura", model.VillageLocation{Village: "Satpura", Lat: 22.5000, Lng: 78.0000, District: "Hoshangabad", State: "Madhya Pradesh"}},
}

// Lookup resolves a village name against the table: exact match on the
// normalized name, then a substring match in either direction. It never
// synthesizes a location.
func Lookup(name string) (model.VillageLocation, bool) {
	key := normalize(name)

	for _, e := range villageTable {
		if e.key == key {
			return e.loc, true
		}
	}

	// An empty key is a substring of everything; treat it as unknown
	if key == "" {
		return model.VillageLocation{}, false
	}

	for _, e := range villageTable {
		if strings.Contains(e.key, key) || strings.Contains(key, e.key) {
			return e.loc, true
		}
	}

	return model.VillageLocation{}, false
}

// Villages returns a copy of the village table in declaration order
func Villages() []model.VillageLocation {
	out := make([]model.VillageLocation, len(villageTable))
	for i, e := range villageTable {
		out[i] = e.loc
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
