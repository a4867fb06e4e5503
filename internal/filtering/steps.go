package filtering

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spigell/internship-recommender/internal/dataset"
)

const notConfiguredMsg = "not configured"

// Filter names, usable with DisableByName.
const (
	NameExcludeCompanies = "exclude_companies"
	NameLocations        = "locations"
	NameMaxExperience    = "max_experience"
)

// toggle carries the enable/disable state shared by every step.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func fold(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

type companiesFilter struct {
	toggle
	companies []string
	set       map[string]struct{}
}

// NewExcludedCompanies creates a filter that removes internships of the given
// companies. Names are compared case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	f := &companiesFilter{companies: companies, set: fold(companies)}
	if len(f.set) == 0 {
		f.Disable(notConfiguredMsg)
	}
	return f
}

func (f *companiesFilter) Name() string { return NameExcludeCompanies }

func (f *companiesFilter) Validate() error { return nil }

func (f *companiesFilter) Keep(in *dataset.Internship) bool {
	_, excluded := f.set[strings.ToLower(strings.TrimSpace(in.Company))]
	return !excluded
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type locationsFilter struct {
	toggle
	locations []string
	set       map[string]struct{}
}

// NewLocations creates a filter that keeps only internships located in one of
// the given locations.
func NewLocations(locations []string) Filter {
	f := &locationsFilter{locations: locations, set: fold(locations)}
	if len(f.set) == 0 {
		f.Disable(notConfiguredMsg)
	}
	return f
}

func (f *locationsFilter) Name() string { return NameLocations }

func (f *locationsFilter) Validate() error { return nil }

func (f *locationsFilter) Keep(in *dataset.Internship) bool {
	_, ok := f.set[strings.ToLower(strings.TrimSpace(in.Location))]
	return ok
}

func (f *locationsFilter) Status() Status {
	details := map[string]string{}
	if len(f.locations) > 0 {
		details["locations"] = strings.Join(f.locations, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type experienceFilter struct {
	toggle
	max float64
}

// NewMaxExperience creates a filter that removes internships asking for more
// than limit years of experience. A negative limit disables the step.
// Internships whose requirement cannot be parsed are kept.
func NewMaxExperience(limit float64) Filter {
	f := &experienceFilter{max: limit}
	if limit < 0 {
		f.Disable(notConfiguredMsg)
	}
	return f
}

func (f *experienceFilter) Name() string { return NameMaxExperience }

func (f *experienceFilter) Validate() error {
	if math.IsNaN(f.max) || math.IsInf(f.max, 0) {
		return fmt.Errorf("max experience must be a finite number, got %v", f.max)
	}
	return nil
}

func (f *experienceFilter) Keep(in *dataset.Internship) bool {
	years, ok := ParseExperience(in.MinimumExperience)
	if !ok {
		return true
	}
	return years <= f.max
}

func (f *experienceFilter) Status() Status {
	details := map[string]string{}
	if f.IsEnabled() {
		details["max_experience"] = strconv.FormatFloat(f.max, 'f', -1, 64)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// ParseExperience reads the leading number of values like "2", "1.5 years"
// or "3+".
func ParseExperience(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
