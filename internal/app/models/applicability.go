package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const clockLayout = "15:04"

// TimeRange is a time-of-day window in "HH:MM" form. End before Start wraps past midnight.
type TimeRange struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func (r TimeRange) Validate() error {
	if _, err := time.Parse(clockLayout, r.Start); err != nil {
		return fmt.Errorf("invalid start time %q", r.Start)
	}
	if _, err := time.Parse(clockLayout, r.End); err != nil {
		return fmt.Errorf("invalid end time %q", r.End)
	}
	return nil
}

// Contains reports whether the wall clock of t falls inside the range, end exclusive.
func (r TimeRange) Contains(t time.Time) bool {
	start, err := time.Parse(clockLayout, r.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse(clockLayout, r.End)
	if err != nil {
		return false
	}

	minute := t.Hour()*60 + t.Minute()
	from := start.Hour()*60 + start.Minute()
	to := end.Hour()*60 + end.Minute()

	if from <= to {
		return minute >= from && minute < to
	}
	return minute >= from || minute < to
}

// ApplicabilityRules restrict where and when a coupon may be redeemed.
type ApplicabilityRules struct {
	MinPurchase      *decimal.Decimal               `gorm:"type:decimal(18,2)" json:"min_purchase,omitempty"`
	MaxPurchase      *decimal.Decimal               `gorm:"type:decimal(18,2)" json:"max_purchase,omitempty"`
	AllowedStations  datatypes.JSONSlice[string]    `json:"allowed_stations,omitempty"`
	ExcludedStations datatypes.JSONSlice[string]    `json:"excluded_stations,omitempty"`
	AllowedFuelTypes datatypes.JSONSlice[string]    `json:"allowed_fuel_types,omitempty"`
	TimeRanges       datatypes.JSONSlice[TimeRange] `json:"time_ranges,omitempty"`
}

// StationAllowed applies the excluded list first; an empty allowed list admits every station.
func (r ApplicabilityRules) StationAllowed(stationID string) (allowed bool, excluded bool) {
	if slices.Contains(r.ExcludedStations, stationID) {
		return false, true
	}
	if len(r.AllowedStations) == 0 {
		return true, false
	}
	return slices.Contains(r.AllowedStations, stationID), false
}

func (r ApplicabilityRules) FuelTypeAllowed(fuelType string) bool {
	if len(r.AllowedFuelTypes) == 0 {
		return true
	}
	for _, allowed := range r.AllowedFuelTypes {
		if strings.EqualFold(allowed, fuelType) {
			return true
		}
	}
	return false
}

func (r ApplicabilityRules) WithinTimeRanges(t time.Time) bool {
	if len(r.TimeRanges) == 0 {
		return true
	}
	for _, tr := range r.TimeRanges {
		if tr.Contains(t) {
			return true
		}
	}
	return false
}

func (r ApplicabilityRules) Validate() error {
	if r.MinPurchase != nil && r.MaxPurchase != nil && r.MinPurchase.GreaterThan(*r.MaxPurchase) {
		return fmt.Errorf("minimum purchase exceeds maximum purchase")
	}
	for _, tr := range r.TimeRanges {
		if err := tr.Validate(); err != nil {
			return err
		}
	}
	return nil
}
