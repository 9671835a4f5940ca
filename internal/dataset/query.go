package dataset

import "treecensus/internal/core"

// QueryHealth returns the health distribution of one species in one borough,
// ordered Poor, Fair, Good. It returns an empty slice when nothing matches.
func (d *Dataset) QueryHealth(b core.Borough, species string) []core.HealthCount {
	idx := d.healthIdx[pairKey{b, species}]
	out := make([]core.HealthCount, 0, len(idx))
	for _, i := range idx {
		r := d.health[i]
		out = append(out, core.HealthCount{Health: r.Health, Count: r.Count})
	}
	return out
}

// QueryStewards returns the steward breakdown of one species in one borough,
// ordered by health then steward. It returns an empty slice when nothing matches.
func (d *Dataset) QueryStewards(b core.Borough, species string) []core.StewardCount {
	idx := d.stewardIdx[pairKey{b, species}]
	out := make([]core.StewardCount, 0, len(idx))
	for _, i := range idx {
		r := d.stewards[i]
		out = append(out, core.StewardCount{Steward: r.Steward, Health: r.Health, Count: r.Count})
	}
	return out
}

// SeriesBySteward partitions steward rows into one series per steward bucket,
// in steward order. Points keep the input order, which QueryStewards makes
// health order.
func SeriesBySteward(rows []core.StewardCount) []core.StewardSeries {
	if len(rows) == 0 {
		return []core.StewardSeries{}
	}
	byStew := make(map[core.Steward][]core.HealthCount)
	for _, r := range rows {
		byStew[r.Steward] = append(byStew[r.Steward], core.HealthCount{Health: r.Health, Count: r.Count})
	}
	out := make([]core.StewardSeries, 0, len(byStew))
	for _, s := range core.Stewards() {
		pts, ok := byStew[s]
		if !ok {
			continue
		}
		out = append(out, core.StewardSeries{Steward: s, Points: pts})
	}
	return out
}

// Total sums the counts of health rows.
func Total(rows []core.HealthCount) int64 {
	var n int64
	for _, r := range rows {
		n += r.Count
	}
	return n
}

// TotalStewards sums the counts of steward rows.
func TotalStewards(rows []core.StewardCount) int64 {
	var n int64
	for _, r := range rows {
		n += r.Count
	}
	return n
}
