package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/gridpulse/pkg/models"
)

func TestDefault(t *testing.T) {
	tbl := Default()

	t.Run("should expose the five reference societies in order", func(t *testing.T) {
		socs := tbl.Societies()
		require.Len(t, socs, 5)
		assert.Equal(t, "s1", socs[0].ID)
		assert.Equal(t, 300.0, socs[0].TransformerCapacity)
	})

	t.Run("should resolve city to zones in order", func(t *testing.T) {
		city, err := tbl.City("ncr")
		require.NoError(t, err)
		zones := tbl.ZonesOf(city)
		require.Len(t, zones, 2)
		assert.Equal(t, "z-gurugram", zones[0].ID)
		assert.Equal(t, "z-noida", zones[1].ID)
	})

	t.Run("should fail lookups of unknown ids", func(t *testing.T) {
		_, err := tbl.Society("nope")
		assert.ErrorIs(t, err, ErrUnknownSociety)
		_, err = tbl.Zone("nope")
		assert.ErrorIs(t, err, ErrUnknownZone)
		_, err = tbl.City("nope")
		assert.ErrorIs(t, err, ErrUnknownCity)
	})
}

func TestValidation(t *testing.T) {
	t.Run("should reject a zone referencing a missing society", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Zones[0].SocietyIDs = append(doc.Zones[0].SocietyIDs, "ghost")
		_, err := New(doc)
		require.ErrorIs(t, err, ErrInvalidTopology)
		assert.Contains(t, err.Error(), "unknown society ghost")
	})

	t.Run("should reject a society whose zone does not exist", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Societies[0].ZoneID = "z-missing"
		_, err := New(doc)
		require.ErrorIs(t, err, ErrInvalidTopology)
		assert.Contains(t, err.Error(), "society s1: unknown zone z-missing")
	})

	t.Run("should reject a mismatched back-reference", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Societies[1].ZoneID = "z-gurugram"
		_, err := New(doc)
		require.ErrorIs(t, err, ErrInvalidTopology)
		assert.Contains(t, err.Error(), "zone back-reference")
	})

	t.Run("should reject a society its zone does not list", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Societies = append(doc.Societies, models.Society{
			ID: "s6", Name: "Orphan Heights", ZoneID: "z-gurugram",
			TransformerCapacity: 300, HouseholdCount: 80, TransformerCount: 2,
		})
		_, err := New(doc)
		require.ErrorIs(t, err, ErrInvalidTopology)
		assert.Contains(t, err.Error(), "society s6: not listed by zone z-gurugram")
	})

	t.Run("should reject a zone its city does not list", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Cities[0].ZoneIDs = []string{"z-gurugram"}
		_, err := New(doc)
		require.ErrorIs(t, err, ErrInvalidTopology)
		assert.Contains(t, err.Error(), "zone z-noida: not listed by city ncr")
	})

	t.Run("should report violations in sorted order", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Zones[4].SocietyIDs = nil
		doc.Zones[0].SocietyIDs = nil
		_, err := New(doc)
		require.ErrorIs(t, err, ErrInvalidTopology)
		assert.Equal(t,
			"invalid topology: society s1: not listed by zone z-gurugram; society s4: not listed by zone z-hinjewadi",
			err.Error())
	})

	t.Run("should reject non-positive capacity", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Societies[2].TransformerCapacity = 0
		_, err := New(doc)
		assert.ErrorIs(t, err, ErrInvalidTopology)
	})

	t.Run("should reject duplicate society ids", func(t *testing.T) {
		doc := DefaultDocument()
		doc.Societies = append(doc.Societies, doc.Societies[0])
		_, err := New(doc)
		assert.ErrorIs(t, err, ErrInvalidTopology)
	})
}

func TestLoad(t *testing.T) {
	const raw = `
cities:
  - id: c1
    name: Test City
    zone_ids: [z1]
zones:
  - id: z1
    name: Zone One
    city_id: c1
    society_ids: [a]
societies:
  - id: a
    name: Alpha
    zone_id: z1
    transformer_capacity: 250
    household_count: 40
    transformer_count: 2
`
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	tbl, err := Load(path)
	require.NoError(t, err)
	s, err := tbl.Society("a")
	require.NoError(t, err)
	assert.Equal(t, 250.0, s.TransformerCapacity)
	assert.Equal(t, []string{"a-t1", "a-t2"}, TransformerIDs(s))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("cities: [: broken"))
	assert.Error(t, err)
}

func TestTransformerName(t *testing.T) {
	assert.Equal(t, "T3", TransformerName(2))
	assert.Empty(t, TransformerIDs(models.Society{ID: "x"}))
}
