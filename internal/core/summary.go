package core

// HealthCount is one bar of the health distribution chart.
type HealthCount struct {
	Health Health `json:"health"`
	Count  int64  `json:"count"`
}

// StewardCount is one bar of the steward chart.
type StewardCount struct {
	Steward Steward `json:"steward"`
	Health  Health  `json:"health"`
	Count   int64   `json:"count"`
}

// StewardSeries groups the steward chart bars of a single steward bucket.
type StewardSeries struct {
	Steward Steward       `json:"steward"`
	Points  []HealthCount `json:"points"`
}

// HealthAggregate is one row of the (borough, health, species) view.
type HealthAggregate struct {
	Borough Borough
	Health  Health
	Species string
	Count   int64
}

// StewardAggregate is one row of the (borough, health, species, steward) view.
type StewardAggregate struct {
	Borough Borough
	Health  Health
	Species string
	Steward Steward
	Count   int64
}
