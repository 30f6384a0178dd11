package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/snf-deals/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestDeriveCensusOccupancy(t *testing.T) {
	tests := []struct {
		name         string
		census, occ  *float64
		beds         *int
		wantC, wantO *float64
	}{
		{"occupancy from census", fp(85), nil, intp(100), fp(85), fp(85)},
		{"rounded", fp(71), nil, intp(90), fp(71), fp(78.89)},
		{"census within tolerance", fp(108), nil, intp(100), fp(108), fp(108)},
		{"census too large for beds", fp(150), nil, intp(100), fp(150), nil},
		{"swap when beds unknown", fp(82), nil, nil, nil, fp(82)},
		{"zero beds is unknown", fp(82), nil, intp(0), nil, fp(82)},
		{"no swap outside plausible range", fp(45), nil, nil, fp(45), nil},
		{"census from occupancy", nil, fp(75), intp(100), fp(75), fp(75)},
		{"census from occupancy rounded", nil, fp(83.3), intp(117), fp(97.46), fp(83.3)},
		{"both present untouched", fp(50), fp(90), intp(100), fp(50), fp(90)},
		{"nothing derivable", nil, fp(75), nil, nil, fp(75)},
		{"non-positive census ignored", fp(0), nil, intp(100), fp(0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, o := DeriveCensusOccupancy(tt.census, tt.occ, tt.beds)
			assert.Equal(t, tt.wantC, c)
			assert.Equal(t, tt.wantO, o)
		})
	}
}

func TestDeriveCensusOccupancy_RoundTrip(t *testing.T) {
	beds := intp(100)
	c, _ := DeriveCensusOccupancy(nil, fp(75), beds)
	require.NotNil(t, c)
	assert.Equal(t, 75.0, *c)

	_, o := DeriveCensusOccupancy(c, nil, beds)
	require.NotNil(t, o)
	assert.Equal(t, 75.0, *o)
}

func TestDeriveCensusOccupancy_DoesNotMutateInputs(t *testing.T) {
	census := fp(82)
	c, o := DeriveCensusOccupancy(census, nil, nil)
	assert.Nil(t, c)
	assert.Equal(t, 82.0, *o)
	assert.Equal(t, 82.0, *census)
	*o = 1
	assert.Equal(t, 82.0, *census)
}

func TestReconcileMonthly(t *testing.T) {
	rows := []model.MonthlyCensus{
		{Month: "2024-01", AverageDailyCensus: fp(82)},
		{Month: "2024-02", OccupancyPercentage: fp(90)},
	}

	out := ReconcileMonthly(rows, nil)
	assert.Nil(t, out[0].AverageDailyCensus)
	assert.Equal(t, 82.0, *out[0].OccupancyPercentage)
	assert.Nil(t, out[1].AverageDailyCensus)
	assert.Equal(t, 82.0, *rows[0].AverageDailyCensus, "input untouched")

	out = ReconcileMonthly(rows, intp(100))
	assert.Equal(t, 82.0, *out[0].OccupancyPercentage)
	assert.Equal(t, 90.0, *out[1].AverageDailyCensus)
}

func TestMeanOccupancy(t *testing.T) {
	assert.Nil(t, MeanOccupancy(nil))
	assert.Nil(t, MeanOccupancy([]model.MonthlyCensus{{AverageDailyCensus: fp(10)}}))

	m := MeanOccupancy([]model.MonthlyCensus{
		{OccupancyPercentage: fp(80)},
		{OccupancyPercentage: fp(85.34)},
		{},
	})
	require.NotNil(t, m)
	assert.Equal(t, 82.67, *m)
}
