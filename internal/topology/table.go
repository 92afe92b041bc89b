package topology

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/terminal-bench/gridpulse/pkg/models"
)

var (
	// ErrInvalidTopology is returned when the table fails referential checks.
	ErrInvalidTopology = errors.New("invalid topology")
	// ErrUnknownSociety is returned for lookups of a society id not in the table.
	ErrUnknownSociety = errors.New("unknown society")
	ErrUnknownZone    = errors.New("unknown zone")
	ErrUnknownCity    = errors.New("unknown city")
)

// Table is the static society/zone/city reference data. It is read-only once built.
type Table struct {
	cities    []models.City
	zones     map[string]models.Zone
	societies map[string]models.Society
	order     []string
}

// Document is the on-disk shape of a topology file.
type Document struct {
	Cities    []models.City    `yaml:"cities"`
	Zones     []models.Zone    `yaml:"zones"`
	Societies []models.Society `yaml:"societies"`
}

// New builds and validates a table.
func New(doc Document) (*Table, error) {
	t := &Table{
		cities:    append([]models.City(nil), doc.Cities...),
		zones:     make(map[string]models.Zone, len(doc.Zones)),
		societies: make(map[string]models.Society, len(doc.Societies)),
	}
	var violations []string
	for _, z := range doc.Zones {
		if _, dup := t.zones[z.ID]; dup {
			violations = append(violations, "zone "+z.ID+": duplicate id")
		}
		t.zones[z.ID] = z
	}
	for _, s := range doc.Societies {
		if _, dup := t.societies[s.ID]; dup {
			violations = append(violations, "society "+s.ID+": duplicate id")
			continue
		}
		t.societies[s.ID] = s
		t.order = append(t.order, s.ID)
	}
	violations = append(violations, validate(t)...)
	if len(violations) > 0 {
		sort.Strings(violations)
		return nil, fmt.Errorf("%w: %s", ErrInvalidTopology, strings.Join(violations, "; "))
	}
	return t, nil
}

func validate(t *Table) []string {
	var v []string
	cities := map[string]models.City{}
	for _, c := range t.cities {
		if _, dup := cities[c.ID]; dup {
			v = append(v, "city "+c.ID+": duplicate id")
		}
		cities[c.ID] = c
		for _, zid := range c.ZoneIDs {
			z, ok := t.zones[zid]
			if !ok {
				v = append(v, "city "+c.ID+": unknown zone "+zid)
				continue
			}
			if z.CityID != c.ID {
				v = append(v, "zone "+zid+": city back-reference "+z.CityID+" does not match owner "+c.ID)
			}
		}
	}
	for id, z := range t.zones {
		if c, ok := cities[z.CityID]; !ok {
			v = append(v, "zone "+id+": unknown city "+z.CityID)
		} else if !slices.Contains(c.ZoneIDs, id) {
			v = append(v, "zone "+id+": not listed by city "+z.CityID)
		}
		for _, sid := range z.SocietyIDs {
			s, ok := t.societies[sid]
			if !ok {
				v = append(v, "zone "+id+": unknown society "+sid)
				continue
			}
			if s.ZoneID != id {
				v = append(v, "society "+sid+": zone back-reference "+s.ZoneID+" does not match owner "+id)
			}
		}
	}
	for id, s := range t.societies {
		if z, ok := t.zones[s.ZoneID]; !ok {
			v = append(v, "society "+id+": unknown zone "+s.ZoneID)
		} else if !slices.Contains(z.SocietyIDs, id) {
			v = append(v, "society "+id+": not listed by zone "+s.ZoneID)
		}
		if !(s.TransformerCapacity > 0) {
			v = append(v, "society "+id+": non-positive transformer capacity")
		}
		if s.HouseholdCount < 0 {
			v = append(v, "society "+id+": negative household count")
		}
		if s.TransformerCount < 0 {
			v = append(v, "society "+id+": negative transformer count")
		}
	}
	return v
}

// Load reads a YAML topology file.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML topology document.
func Parse(raw []byte) (*Table, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	return New(doc)
}

// Society looks up a society by id.
func (t *Table) Society(id string) (models.Society, error) {
	s, ok := t.societies[id]
	if !ok {
		return models.Society{}, fmt.Errorf("%w: %s", ErrUnknownSociety, id)
	}
	return s, nil
}

// Zone looks up a zone by id.
func (t *Table) Zone(id string) (models.Zone, error) {
	z, ok := t.zones[id]
	if !ok {
		return models.Zone{}, fmt.Errorf("%w: %s", ErrUnknownZone, id)
	}
	return z, nil
}

// City looks up a city by id.
func (t *Table) City(id string) (models.City, error) {
	for _, c := range t.cities {
		if c.ID == id {
			return c, nil
		}
	}
	return models.City{}, fmt.Errorf("%w: %s", ErrUnknownCity, id)
}

// Societies returns all societies in declaration order.
func (t *Table) Societies() []models.Society {
	out := make([]models.Society, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.societies[id])
	}
	return out
}

// Cities returns the cities in declaration order.
func (t *Table) Cities() []models.City {
	return append([]models.City(nil), t.cities...)
}

// ZonesOf returns the zones of a city in order.
func (t *Table) ZonesOf(city models.City) []models.Zone {
	out := make([]models.Zone, 0, len(city.ZoneIDs))
	for _, zid := range city.ZoneIDs {
		out = append(out, t.zones[zid])
	}
	return out
}

// TransformerIDs returns the transformer ids configured for a society.
func TransformerIDs(s models.Society) []string {
	ids := make([]string, s.TransformerCount)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-t%d", s.ID, i+1)
	}
	return ids
}

// TransformerName is the short display name of the i-th transformer, e.g. "T1".
func TransformerName(i int) string {
	return fmt.Sprintf("T%d", i+1)
}
