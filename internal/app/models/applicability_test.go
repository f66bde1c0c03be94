package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestTimeRangeContains(t *testing.T) {
	tests := []struct {
		name  string
		r     TimeRange
		at    time.Time
		match bool
	}{
		{"inside daytime window", TimeRange{Start: "06:00", End: "10:00"}, at(8, 30), true},
		{"start is inclusive", TimeRange{Start: "06:00", End: "10:00"}, at(6, 0), true},
		{"end is exclusive", TimeRange{Start: "06:00", End: "10:00"}, at(10, 0), false},
		{"before daytime window", TimeRange{Start: "06:00", End: "10:00"}, at(5, 59), false},
		{"overnight before midnight", TimeRange{Start: "22:00", End: "02:00"}, at(23, 0), true},
		{"overnight after midnight", TimeRange{Start: "22:00", End: "02:00"}, at(1, 0), true},
		{"overnight end is exclusive", TimeRange{Start: "22:00", End: "02:00"}, at(2, 0), false},
		{"overnight midday", TimeRange{Start: "22:00", End: "02:00"}, at(12, 0), false},
		{"malformed range", TimeRange{Start: "25:00", End: "02:00"}, at(1, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.r.Contains(tt.at))
		})
	}
}

func TestStationAllowed(t *testing.T) {
	rules := ApplicabilityRules{
		AllowedStations:  []string{"ST-1", "ST-2"},
		ExcludedStations: []string{"ST-2"},
	}

	tests := []struct {
		station  string
		allowed  bool
		excluded bool
	}{
		{"ST-1", true, false},
		{"ST-2", false, true},
		{"ST-3", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.station, func(t *testing.T) {
			allowed, excluded := rules.StationAllowed(tt.station)
			assert.Equal(t, tt.allowed, allowed)
			assert.Equal(t, tt.excluded, excluded)
		})
	}

	allowed, excluded := ApplicabilityRules{}.StationAllowed("ST-9")
	assert.True(t, allowed)
	assert.False(t, excluded)
}

func TestFuelTypeAllowedIgnoresCase(t *testing.T) {
	rules := ApplicabilityRules{AllowedFuelTypes: []string{"Diesel"}}
	assert.True(t, rules.FuelTypeAllowed("DIESEL"))
	assert.False(t, rules.FuelTypeAllowed("PETROL"))
	assert.True(t, ApplicabilityRules{}.FuelTypeAllowed("PETROL"))
}

func TestApplicabilityRulesValidate(t *testing.T) {
	low := decimal.NewFromInt(10)
	high := decimal.NewFromInt(100)

	assert.NoError(t, ApplicabilityRules{MinPurchase: &low, MaxPurchase: &high}.Validate())
	assert.Error(t, ApplicabilityRules{MinPurchase: &high, MaxPurchase: &low}.Validate())
	assert.Error(t, ApplicabilityRules{TimeRanges: []TimeRange{{Start: "6am", End: "10:00"}}}.Validate())
}
