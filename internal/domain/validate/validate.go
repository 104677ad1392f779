package validate

import (
	"math"
	"strconv"
	"time"

	"github.com/macrofeed/macrofeed/internal/domain/dedupe"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/period"
)

// Rejection reasons. These become keys of the skip histogram in run
// summaries, so they are stable strings rather than error values.
const (
	ReasonInvalidDate   = "Invalid date format"
	ReasonFutureDate    = "Future date"
	ReasonMissingValue  = "Missing value"
	ReasonInvalidNumber = "Invalid numeric value"
	ReasonBelowMinimum  = "Value below minimum"
	ReasonAboveMaximum  = "Value above maximum"
	ReasonOutlier       = "Statistical outlier"
)

// now is swappable for tests.
var now = time.Now

// Validate checks a single observation's date and value against opts.
// The outlier pass is batch-level and lives in DetectOutliers.
func Validate(obs model.Observation, opts Options) model.ValidationResult {
	d, err := time.Parse(period.DateLayout, obs.Date)
	if err != nil {
		return model.ValidationResult{Reason: ReasonInvalidDate}
	}
	if d.After(now().UTC()) {
		return model.ValidationResult{Reason: ReasonFutureDate}
	}

	if obs.Value == model.MissingValue {
		if opts.AllowMissing {
			return model.ValidationResult{Valid: true}
		}
		return model.ValidationResult{Reason: ReasonMissingValue}
	}

	v, err := strconv.ParseFloat(obs.Value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		// ParseFloat accepts "NaN" and "Inf", but a non-finite reading
		// cannot be range-checked or averaged.
		return model.ValidationResult{Reason: ReasonInvalidNumber}
	}
	if v < opts.MinValue {
		return model.ValidationResult{Reason: ReasonBelowMinimum}
	}
	if v > opts.MaxValue {
		return model.ValidationResult{Reason: ReasonAboveMaximum}
	}
	return model.ValidationResult{Valid: true}
}

// DetectOutliers flags observations whose numeric value deviates from the
// batch mean by more than stdDevs population standard deviations. Missing
// or unparseable values never count as outliers. A zero standard
// deviation (all-constant batch) short-circuits to no outliers.
// Returned indices refer to positions in observations.
func DetectOutliers(observations []model.Observation, stdDevs float64) []int {
	if stdDevs <= 0 {
		return nil
	}

	type numeric struct {
		idx int
		val float64
	}
	nums := make([]numeric, 0, len(observations))
	for i, obs := range observations {
		if obs.Value == model.MissingValue {
			continue
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		nums = append(nums, numeric{idx: i, val: v})
	}
	if len(nums) == 0 {
		return nil
	}

	var sum float64
	for _, n := range nums {
		sum += n.val
	}
	mean := sum / float64(len(nums))

	var variance float64
	for _, n := range nums {
		variance += (n.val - mean) * (n.val - mean)
	}
	sigma := math.Sqrt(variance / float64(len(nums)))
	if sigma == 0 {
		return nil
	}

	var outliers []int
	for _, n := range nums {
		if math.Abs(n.val-mean) > stdDevs*sigma {
			outliers = append(outliers, n.idx)
		}
	}
	return outliers
}

// Stats summarizes one ProcessObservations pass. Skipped counts both
// validation rejections and outliers; Outliers is tracked distinctly.
type Stats struct {
	Received    int
	Valid       int
	Skipped     int
	SkipReasons map[string]int
	Duplicates  int
	Outliers    int
}

// ProcessObservations is the composed validation entry point: filter
// invalid records, flag outliers among the survivors, deduplicate by
// identity key, and report counts. The returned slice preserves input
// order of the surviving records.
func ProcessObservations(observations []model.Observation, opts Options) ([]model.Observation, Stats) {
	stats := Stats{
		Received:    len(observations),
		SkipReasons: make(map[string]int),
	}

	survivors := make([]model.Observation, 0, len(observations))
	for _, obs := range observations {
		res := Validate(obs, opts)
		if !res.Valid {
			stats.Skipped++
			stats.SkipReasons[res.Reason]++
			continue
		}
		survivors = append(survivors, obs)
	}

	if idxs := DetectOutliers(survivors, opts.OutlierStdDevs); len(idxs) > 0 {
		flagged := make(map[int]struct{}, len(idxs))
		for _, i := range idxs {
			flagged[i] = struct{}{}
		}
		kept := survivors[:0]
		for i, obs := range survivors {
			if _, ok := flagged[i]; ok {
				stats.Skipped++
				stats.Outliers++
				stats.SkipReasons[ReasonOutlier]++
				continue
			}
			kept = append(kept, obs)
		}
		survivors = kept
	}

	unique, dupCount := dedupe.Deduplicate(survivors, func(o model.Observation) string {
		return o.SourceIndicatorID + "|" + o.CountryCode + "|" + o.Date + "|" + o.Period
	})
	stats.Duplicates = dupCount
	stats.Valid = len(unique)
	return unique, stats
}
