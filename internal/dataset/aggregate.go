package dataset

import (
	"sort"

	"treecensus/internal/core"
)

type pairKey struct {
	borough core.Borough
	species string
}

type healthKey struct {
	pairKey
	health core.Health
}

type stewardKey struct {
	healthKey
	steward core.Steward
}

// AggregateHealth groups by (borough, health, species) and sums counts.
// Every (borough, species) pair present in t gets one row per health level;
// combinations without records carry a zero count. Rows are ordered by
// borough, health, species.
func AggregateHealth(t Table) []core.HealthAggregate {
	sums := make(map[healthKey]int64)
	pairs := observedPairs(t)
	for _, r := range t {
		sums[healthKey{pairKey{r.Borough, r.Species}, r.Health}] += r.Count
	}

	out := make([]core.HealthAggregate, 0, len(pairs)*len(core.Healths()))
	for _, p := range pairs {
		for _, h := range core.Healths() {
			out = append(out, core.HealthAggregate{
				Borough: p.borough,
				Health:  h,
				Species: p.species,
				Count:   sums[healthKey{p, h}],
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Borough.Rank() != b.Borough.Rank() {
			return a.Borough.Rank() < b.Borough.Rank()
		}
		if a.Health.Rank() != b.Health.Rank() {
			return a.Health.Rank() < b.Health.Rank()
		}
		return a.Species < b.Species
	})
	return out
}

// AggregateStewards groups by (borough, health, species, steward), sums
// counts and zero-fills like AggregateHealth, then sorts ascending by
// (health, steward) so chart series come out in a stable order.
func AggregateStewards(t Table) []core.StewardAggregate {
	sums := make(map[stewardKey]int64)
	pairs := observedPairs(t)
	for _, r := range t {
		sums[stewardKey{healthKey{pairKey{r.Borough, r.Species}, r.Health}, r.Steward}] += r.Count
	}

	out := make([]core.StewardAggregate, 0, len(pairs)*len(core.Healths())*len(core.Stewards()))
	for _, p := range pairs {
		for _, h := range core.Healths() {
			for _, s := range core.Stewards() {
				out = append(out, core.StewardAggregate{
					Borough: p.borough,
					Health:  h,
					Species: p.species,
					Steward: s,
					Count:   sums[stewardKey{healthKey{p, h}, s}],
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Health.Rank() != b.Health.Rank() {
			return a.Health.Rank() < b.Health.Rank()
		}
		if a.Steward.Rank() != b.Steward.Rank() {
			return a.Steward.Rank() < b.Steward.Rank()
		}
		if a.Borough.Rank() != b.Borough.Rank() {
			return a.Borough.Rank() < b.Borough.Rank()
		}
		return a.Species < b.Species
	})
	return out
}

// observedPairs returns the distinct (borough, species) pairs of t in first-seen order.
func observedPairs(t Table) []pairKey {
	seen := make(map[pairKey]struct{})
	var out []pairKey
	for _, r := range t {
		k := pairKey{r.Borough, r.Species}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
