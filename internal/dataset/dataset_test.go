package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treecensus/internal/core"
)

func raw(b core.Borough, species, health, steward string, n int64) core.RawRecord {
	r := core.RawRecord{Borough: b, Count: core.Count(n)}
	if species != "" {
		r.Species = core.Str(species)
	}
	if health != "" {
		r.Health = core.Str(health)
	}
	if steward != "" {
		r.Steward = core.Str(steward)
	}
	return r
}

func sampleRaw() []core.RawRecord {
	return []core.RawRecord{
		raw(core.Bronx, "American beech", "Good", "1or2", 12),
		raw(core.Bronx, "American beech", "Poor", "None", 3),
		raw(core.Bronx, "pin oak", "Fair", "None", 20),
		raw(core.Bronx, "pin oak", "Fair", "3or4", 5),
		raw(core.Bronx, "pin oak", "Good", ">4", 1),
		raw(core.Brooklyn, "London planetree", "Good", "None", 40),
		raw(core.Brooklyn, "American beech", "Fair", "1or2", 2),
		raw(core.Queens, "Amur cork tree", "Poor", "None", 4),
		// dropped: missing health or species
		raw(core.Queens, "", "Good", "None", 9),
		raw(core.Queens, "honeylocust", "", "", 9),
		// rejected: out-of-set categories
		raw(core.Queens, "honeylocust", "Dead", "None", 1),
		raw(core.Queens, "honeylocust", "Good", "many", 1),
	}
}

func mustBuild(t *testing.T, in []core.RawRecord) *Dataset {
	t.Helper()
	ds, _, err := Build(in, BuildOptions{})
	require.NoError(t, err)
	return ds
}

func TestNormalize_DropsAndRejects(t *testing.T) {
	tbl, rep := Normalize(sampleRaw())

	assert.Equal(t, 12, rep.Input)
	assert.Equal(t, 8, rep.Kept)
	assert.Equal(t, 2, rep.DroppedMissing)
	assert.Equal(t, 2, rep.RejectedCategory)
	require.Len(t, rep.Samples, 2)
	assert.Equal(t, "Dead", rep.Samples[0].Health)
	assert.Equal(t, "many", rep.Samples[1].Steward)
	assert.Len(t, tbl, 8)

	for i := 1; i < len(tbl); i++ {
		assert.LessOrEqual(t, tbl[i-1].Health.Rank(), tbl[i].Health.Rank(), "table must be sorted by health")
	}
}

func TestNormalize_MissingStewardIsRejected(t *testing.T) {
	_, rep := Normalize([]core.RawRecord{raw(core.Bronx, "pin oak", "Good", "", 3)})
	assert.Equal(t, 0, rep.Kept)
	assert.Equal(t, 1, rep.RejectedCategory)
}

func TestNormalize_NullCountIsZero(t *testing.T) {
	r := raw(core.Bronx, "pin oak", "Good", "None", 0)
	r.Count = core.NullCount{}
	tbl, rep := Normalize([]core.RawRecord{r})
	require.Equal(t, 1, rep.Kept)
	assert.Equal(t, int64(0), tbl[0].Count)
}

func TestNormalizeStrict(t *testing.T) {
	_, rep, err := NormalizeStrict(sampleRaw())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownCategory))
	assert.Equal(t, 2, rep.RejectedCategory)

	_, _, err = Build(sampleRaw(), BuildOptions{Strict: true})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	clean := sampleRaw()[:8]
	tbl, _, err := NormalizeStrict(clean)
	require.NoError(t, err)
	assert.Len(t, tbl, 8)
}

func TestNormalize_Idempotent(t *testing.T) {
	tbl, _ := Normalize(sampleRaw())
	again := NormalizeTable(tbl)
	assert.Equal(t, tbl, again)
	assert.Equal(t, again, NormalizeTable(again))
}

func TestQueryHealth_Example(t *testing.T) {
	ds := mustBuild(t, []core.RawRecord{
		raw(core.Bronx, "American beech", "Good", "1or2", 12),
		raw(core.Bronx, "American beech", "Poor", "None", 3),
	})

	got := ds.QueryHealth(core.Bronx, "American beech")
	assert.Equal(t, []core.HealthCount{
		{Health: core.HealthPoor, Count: 3},
		{Health: core.HealthFair, Count: 0},
		{Health: core.HealthGood, Count: 12},
	}, got)

	var nonZero []core.StewardCount
	for _, r := range ds.QueryStewards(core.Bronx, "American beech") {
		if r.Count > 0 {
			nonZero = append(nonZero, r)
		}
	}
	assert.Equal(t, []core.StewardCount{
		{Steward: core.StewardNone, Health: core.HealthPoor, Count: 3},
		{Steward: core.StewardOneOrTwo, Health: core.HealthGood, Count: 12},
	}, nonZero)
}

func TestQueries_Properties(t *testing.T) {
	ds := mustBuild(t, sampleRaw())

	for _, b := range core.Boroughs() {
		for _, s := range ds.Species() {
			health := ds.QueryHealth(b, s)
			stew := ds.QueryStewards(b, s)

			assert.LessOrEqual(t, len(health), 3)
			for _, r := range health {
				assert.GreaterOrEqual(t, r.Count, int64(0))
			}
			assert.Equal(t, Total(health), TotalStewards(stew), "%s/%s totals differ", b, s)

			for i := 1; i < len(stew); i++ {
				prev, cur := stew[i-1], stew[i]
				if prev.Health == cur.Health {
					assert.Less(t, prev.Steward.Rank(), cur.Steward.Rank())
				} else {
					assert.Less(t, prev.Health.Rank(), cur.Health.Rank())
				}
			}
		}
	}
}

func TestQueries_NoMatchIsEmpty(t *testing.T) {
	ds := mustBuild(t, sampleRaw())

	h := ds.QueryHealth(core.Manhattan, "pin oak")
	require.NotNil(t, h)
	assert.Empty(t, h)

	s := ds.QueryStewards(core.Bronx, "no such tree")
	require.NotNil(t, s)
	assert.Empty(t, s)
	assert.Empty(t, SeriesBySteward(s))
}

func TestAggregates_SumDuplicates(t *testing.T) {
	ds := mustBuild(t, []core.RawRecord{
		raw(core.Bronx, "pin oak", "Fair", "None", 20),
		raw(core.Bronx, "pin oak", "Fair", "None", 5),
		raw(core.Bronx, "pin oak", "Fair", "3or4", 5),
	})
	assert.Equal(t, []core.HealthCount{
		{Health: core.HealthPoor, Count: 0},
		{Health: core.HealthFair, Count: 30},
		{Health: core.HealthGood, Count: 0},
	}, ds.QueryHealth(core.Bronx, "pin oak"))

	rows := ds.StewardRows()
	assert.Len(t, rows, 12)
	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		assert.True(t, a.Health.Rank() < b.Health.Rank() ||
			(a.Health == b.Health && a.Steward.Rank() <= b.Steward.Rank()))
	}
}

func TestSeriesBySteward(t *testing.T) {
	ds := mustBuild(t, sampleRaw())
	series := SeriesBySteward(ds.QueryStewards(core.Bronx, "pin oak"))

	require.Len(t, series, 4)
	for i, s := range series {
		assert.Equal(t, core.Stewards()[i], s.Steward)
		require.Len(t, s.Points, 3)
		assert.Equal(t, core.HealthPoor, s.Points[0].Health)
		assert.Equal(t, core.HealthGood, s.Points[2].Health)
	}
	assert.Equal(t, int64(20), series[0].Points[1].Count)
	assert.Equal(t, int64(5), series[2].Points[1].Count)
	assert.Equal(t, int64(1), series[3].Points[2].Count)
}

func TestSpecies_SortedCaseInsensitiveUnique(t *testing.T) {
	ds := mustBuild(t, []core.RawRecord{
		raw(core.Bronx, "pin oak", "Good", "None", 1),
		raw(core.Brooklyn, "pin oak", "Good", "None", 1),
		raw(core.Bronx, "American beech", "Good", "None", 1),
		raw(core.Bronx, "amur maple", "Good", "None", 1),
		raw(core.Queens, "Zelkova", "Good", "None", 1),
	})
	assert.Equal(t, []string{"American beech", "amur maple", "pin oak", "Zelkova"}, ds.Species())
	assert.Equal(t, []string{"pin oak"}, ds.SpeciesIn(core.Brooklyn))
	assert.True(t, ds.HasSpecies("amur maple"))
	assert.True(t, ds.HasSpecies("Zelkova"))
	assert.False(t, ds.HasSpecies("zelkova"))
}

func TestDatasetAccessorsReturnCopies(t *testing.T) {
	ds := mustBuild(t, sampleRaw())
	sp := ds.Species()
	sp[0] = "mutated"
	assert.NotEqual(t, "mutated", ds.Species()[0])

	rows := ds.HealthRows()
	rows[0].Count = -100
	assert.GreaterOrEqual(t, ds.HealthRows()[0].Count, int64(0))
}

func TestBuildMeta(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ds, rep, err := Build(sampleRaw(), BuildOptions{SnapshotID: "snap-1", Now: func() time.Time { return at }})
	require.NoError(t, err)

	m := ds.Meta()
	assert.Equal(t, "snap-1", m.SnapshotID)
	assert.Equal(t, at, m.BuiltAt)
	assert.Equal(t, rep.Input, m.InputRows)
	assert.Equal(t, 8, m.Rows)
	assert.Equal(t, int64(87), m.TotalTrees)
}
