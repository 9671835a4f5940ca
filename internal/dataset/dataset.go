package dataset

import (
	"sort"
	"strings"
	"time"

	"treecensus/internal/core"
)

// Meta describes how a Dataset was built.
type Meta struct {
	SnapshotID  string
	BuiltAt     time.Time
	InputRows   int
	Rows        int
	TotalTrees  int64
	SpeciesSeen int
}

// BuildOptions controls Build.
type BuildOptions struct {
	// Strict turns category rejections into a build error.
	Strict     bool
	SnapshotID string
	Now        func() time.Time
}

// Dataset is the immutable data context shared by the query and presentation
// layers. It is built once and only read afterwards, so it is safe for
// concurrent use without locking.
type Dataset struct {
	health   []core.HealthAggregate
	stewards []core.StewardAggregate

	healthIdx  map[pairKey][]int
	stewardIdx map[pairKey][]int

	species          []string
	speciesByBorough map[core.Borough][]string

	meta Meta
}

// Build normalizes raw and computes both aggregate views.
func Build(raw []core.RawRecord, opts BuildOptions) (*Dataset, Report, error) {
	var (
		t   Table
		rep Report
		err error
	)
	if opts.Strict {
		t, rep, err = NormalizeStrict(raw)
		if err != nil {
			return nil, rep, err
		}
	} else {
		t, rep = Normalize(raw)
	}
	ds := FromTable(t, opts)
	ds.meta.InputRows = rep.Input
	return ds, rep, nil
}

// FromTable builds a Dataset from an already normalized table.
func FromTable(t Table, opts BuildOptions) *Dataset {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	ds := &Dataset{
		health:           AggregateHealth(t),
		stewards:         AggregateStewards(t),
		healthIdx:        make(map[pairKey][]int),
		stewardIdx:       make(map[pairKey][]int),
		speciesByBorough: make(map[core.Borough][]string),
	}
	for i, r := range ds.health {
		k := pairKey{r.Borough, r.Species}
		ds.healthIdx[k] = append(ds.healthIdx[k], i)
	}
	for i, r := range ds.stewards {
		k := pairKey{r.Borough, r.Species}
		ds.stewardIdx[k] = append(ds.stewardIdx[k], i)
	}

	all := make([]string, 0)
	perBorough := make(map[core.Borough][]string)
	for k := range ds.healthIdx {
		all = append(all, k.species)
		perBorough[k.borough] = append(perBorough[k.borough], k.species)
	}
	ds.species = SortSpecies(all)
	for b, names := range perBorough {
		ds.speciesByBorough[b] = SortSpecies(names)
	}

	var total int64
	for _, r := range t {
		total += r.Count
	}
	ds.meta = Meta{
		SnapshotID:  opts.SnapshotID,
		BuiltAt:     now(),
		InputRows:   len(t),
		Rows:        len(t),
		TotalTrees:  total,
		SpeciesSeen: len(ds.species),
	}
	return ds
}

// SortSpecies returns the distinct names of in, sorted case-insensitively.
func SortSpecies(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i]), strings.ToLower(out[j])
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}

func (d *Dataset) Meta() Meta { return d.meta }

// Boroughs returns the fixed borough list offered by the selector.
func (d *Dataset) Boroughs() []core.Borough { return core.Boroughs() }

// Species returns every species in the health view, sorted case-insensitively.
func (d *Dataset) Species() []string {
	return append([]string(nil), d.species...)
}

// SpeciesIn returns the species observed in one borough.
func (d *Dataset) SpeciesIn(b core.Borough) []string {
	return append([]string(nil), d.speciesByBorough[b]...)
}

// HasSpecies reports whether name appears anywhere in the dataset.
func (d *Dataset) HasSpecies(name string) bool {
	i := sort.Search(len(d.species), func(i int) bool {
		li, ln := strings.ToLower(d.species[i]), strings.ToLower(name)
		if li != ln {
			return li >= ln
		}
		return d.species[i] >= name
	})
	return i < len(d.species) && d.species[i] == name
}

// HealthRows returns a copy of the (borough, health, species) view.
func (d *Dataset) HealthRows() []core.HealthAggregate {
	return append([]core.HealthAggregate(nil), d.health...)
}

// StewardRows returns a copy of the (borough, health, species, steward) view.
func (d *Dataset) StewardRows() []core.StewardAggregate {
	return append([]core.StewardAggregate(nil), d.stewards...)
}
