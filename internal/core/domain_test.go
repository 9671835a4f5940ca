package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseCategories(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"Poor", true},
		{" Good ", true},
		{"good", false},
		{"Dead", false},
		{"", false},
	}
	for i, tc := range cases {
		_, err := ParseHealth(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrUnknownCategory) {
			t.Fatalf("case %d expected ErrUnknownCategory, got %v", i, err)
		}
	}

	if _, err := ParseSteward(">4"); err != nil {
		t.Fatalf("expected >4 to parse, got %v", err)
	}
	if _, err := ParseSteward("5+"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := ParseBorough("Staten Island"); err != nil {
		t.Fatalf("expected Staten Island to parse, got %v", err)
	}
	if _, err := ParseBorough("Jersey City"); !errors.Is(err, ErrUnknownBorough) {
		t.Fatalf("expected ErrUnknownBorough, got %v", err)
	}
}

func TestCategoryOrdering(t *testing.T) {
	if !(HealthPoor.Rank() < HealthFair.Rank() && HealthFair.Rank() < HealthGood.Rank()) {
		t.Fatalf("health ranks out of order")
	}
	order := Stewards()
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("steward %s should rank before %s", order[i-1], order[i])
		}
	}
	if Health("Dead").Rank() != len(Healths()) {
		t.Fatalf("unknown health should sort last")
	}
}

func TestBoroughsIsACopy(t *testing.T) {
	b := Boroughs()
	b[0] = "Hoboken"
	if Boroughs()[0] != Bronx {
		t.Fatalf("Boroughs() exposed internal slice")
	}
	if len(Boroughs()) != 5 {
		t.Fatalf("expected 5 boroughs, got %d", len(Boroughs()))
	}
}

func TestTreeRecordValidate(t *testing.T) {
	good := TreeRecord{Borough: Bronx, Species: "American beech", Health: HealthGood, Steward: StewardNone, Count: 3}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Species = " "
	if !errors.Is(bad.Validate(), ErrEmptySpecies) {
		t.Fatalf("expected ErrEmptySpecies")
	}
	bad = good
	bad.Count = -1
	if !errors.Is(bad.Validate(), ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount")
	}
	bad = good
	bad.Steward = "lots"
	if !errors.Is(bad.Validate(), ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory")
	}
}

func TestTreeRecordValidateWrapsInvalidRecord(t *testing.T) {
	good := TreeRecord{Borough: Queens, Species: "pin oak", Health: HealthFair, Steward: StewardOneOrTwo, Count: 1}
	tests := []struct {
		name   string
		mutate func(r *TreeRecord)
		cause  error
	}{
		{name: "unknown borough", mutate: func(r *TreeRecord) { r.Borough = "Hoboken" }, cause: ErrUnknownBorough},
		{name: "empty species", mutate: func(r *TreeRecord) { r.Species = "" }, cause: ErrEmptySpecies},
		{name: "unknown health", mutate: func(r *TreeRecord) { r.Health = "Dead" }, cause: ErrUnknownCategory},
		{name: "negative count", mutate: func(r *TreeRecord) { r.Count = -5 }, cause: ErrNegativeCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			tt.mutate(&r)
			err := r.Validate()
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("Validate() = %v, want ErrInvalidRecord", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Fatalf("Validate() = %v, want cause %v", err, tt.cause)
			}
		})
	}
}

func TestRawRecordDecode(t *testing.T) {
	body := `[
		{"spc_common":"American beech","count_tree_id":"12","health":"Good","steward":"1or2"},
		{"spc_common":"London planetree","count_tree_id":7,"health":"Fair","steward":"None"},
		{"count_tree_id":"4"},
		{"spc_common":"pin oak","health":"Poor","steward":"None","count_tree_id":null}
	]`
	var recs []RawRecord
	if err := json.Unmarshal([]byte(body), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	if recs[0].Count.Int64() != 12 || recs[1].Count.Int64() != 7 {
		t.Fatalf("unexpected counts: %+v %+v", recs[0].Count, recs[1].Count)
	}
	if _, ok := Field(recs[2].Health); ok {
		t.Fatalf("expected missing health")
	}
	if recs[3].Count.Valid || recs[3].Count.Int64() != 0 {
		t.Fatalf("expected null count to read as zero")
	}
}

func TestNullCountRejectsGarbage(t *testing.T) {
	var c NullCount
	if err := json.Unmarshal([]byte(`"twelve"`), &c); err == nil {
		t.Fatalf("expected error for non-numeric count")
	}
}
