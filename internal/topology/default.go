package topology

import "github.com/terminal-bench/gridpulse/pkg/models"

// DefaultDocument is the built-in reference topology.
func DefaultDocument() Document {
	return Document{
		Cities: []models.City{
			{ID: "ncr", Name: "Delhi NCR", ZoneIDs: []string{"z-gurugram", "z-noida"}},
			{ID: "blr", Name: "Bengaluru", ZoneIDs: []string{"z-whitefield"}},
			{ID: "mh", Name: "Mumbai-Pune", ZoneIDs: []string{"z-powai", "z-hinjewadi"}},
		},
		Zones: []models.Zone{
			{ID: "z-gurugram", Name: "Gurugram", CityID: "ncr", SocietyIDs: []string{"s1"}},
			{ID: "z-noida", Name: "Noida", CityID: "ncr", SocietyIDs: []string{"s5"}},
			{ID: "z-whitefield", Name: "Whitefield", CityID: "blr", SocietyIDs: []string{"s2"}},
			{ID: "z-powai", Name: "Powai", CityID: "mh", SocietyIDs: []string{"s3"}},
			{ID: "z-hinjewadi", Name: "Hinjewadi", CityID: "mh", SocietyIDs: []string{"s4"}},
		},
		Societies: []models.Society{
			{ID: "s1", Name: "Green Valley Estate", Location: "Sector 42, Gurugram", ZoneID: "z-gurugram", TransformerCapacity: 300, HouseholdCount: 100, TransformerCount: 3},
			{ID: "s2", Name: "Sunrise Towers", Location: "Whitefield, Bangalore", ZoneID: "z-whitefield", TransformerCapacity: 280, HouseholdCount: 85, TransformerCount: 3},
			{ID: "s3", Name: "Palm Heights", Location: "Powai, Mumbai", ZoneID: "z-powai", TransformerCapacity: 320, HouseholdCount: 120, TransformerCount: 3},
			{ID: "s4", Name: "Maple Gardens", Location: "Hinjewadi, Pune", ZoneID: "z-hinjewadi", TransformerCapacity: 260, HouseholdCount: 90, TransformerCount: 3},
			{ID: "s5", Name: "Cedar Residency", Location: "Noida Sector 62", ZoneID: "z-noida", TransformerCapacity: 290, HouseholdCount: 95, TransformerCount: 3},
		},
	}
}

// Default returns the built-in reference topology table.
func Default() *Table {
	t, err := New(DefaultDocument())
	if err != nil {
		panic(err)
	}
	return t
}
