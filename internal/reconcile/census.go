package reconcile

import (
	"math"

	"github.com/sells-group/snf-deals/internal/model"
)

const (
	// censusTolerance allows reported census to exceed licensed beds by 10%.
	censusTolerance = 1.1
	minPlausiblePct = 60.0
	maxPlausiblePct = 100.0
)

// DeriveCensusOccupancy fills whichever of average daily census and
// occupancy percentage is missing. The rules run in order:
//
//  1. occupancy from census when beds are known and census fits the beds;
//  2. with no bed count, a census in [60, 100] is taken to be a misplaced
//     occupancy percentage and moved over;
//  3. census from occupancy when beds are known.
//
// A bed count of zero or less is unknown. Derived values are rounded to two
// decimals. The inputs are not modified.
func DeriveCensusOccupancy(census, occupancy *float64, bedCount *int) (*float64, *float64) {
	census = clone(census)
	occupancy = clone(occupancy)

	beds := 0.0
	if bedCount != nil && *bedCount > 0 {
		beds = float64(*bedCount)
	}

	if occupancy == nil && census != nil && *census > 0 {
		switch {
		case beds > 0:
			if *census <= beds*censusTolerance {
				occupancy = ptr(round2(*census / beds * 100))
			}
		case *census >= minPlausiblePct && *census <= maxPlausiblePct:
			occupancy = census
			census = nil
		}
	}

	if census == nil && occupancy != nil && beds > 0 {
		census = ptr(round2(*occupancy / 100 * beds))
	}
	return census, occupancy
}

// ReconcileMonthly returns a copy of rows with census and occupancy derived
// against bedCount.
func ReconcileMonthly(rows []model.MonthlyCensus, bedCount *int) []model.MonthlyCensus {
	out := make([]model.MonthlyCensus, len(rows))
	for i, r := range rows {
		r.AverageDailyCensus, r.OccupancyPercentage = DeriveCensusOccupancy(r.AverageDailyCensus, r.OccupancyPercentage, bedCount)
		out[i] = r
	}
	return out
}

// MeanOccupancy averages the known occupancy percentages, or nil when none are known.
func MeanOccupancy(rows []model.MonthlyCensus) *float64 {
	var sum float64
	var n int
	for _, r := range rows {
		if r.OccupancyPercentage == nil {
			continue
		}
		sum += *r.OccupancyPercentage
		n++
	}
	if n == 0 {
		return nil
	}
	return ptr(round2(sum / float64(n)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 { return &v }

func clone(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
