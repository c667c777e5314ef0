package controller

import (
	"testing"

	"github.com/clambin/zoned/internal/poller"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	base := classifierInput{
		HeatTarget:       21.0,
		CoolTarget:       25.0,
		Deadband:         0.5,
		HeatingThreshold: 2.0,
		CoolingThreshold: 2.0,
	}

	tests := []struct {
		name         string
		mode         poller.SystemMode
		readings     []float64
		active       bool
		wantUnknown  bool
		wantSatiated bool
		wantCritical bool
	}{
		{
			name:        "no readings",
			mode:        poller.ModeHeat,
			wantUnknown: true,
		},
		{
			name:         "heating, warmest sensor in deadband",
			mode:         poller.ModeHeat,
			readings:     []float64{19.0, 20.6},
			wantSatiated: true,
		},
		{
			name:     "heating, all sensors below deadband",
			mode:     poller.ModeHeat,
			readings: []float64{19.0, 20.4},
		},
		{
			name:         "heating, inactive room critical only when warmest sensor is cold",
			mode:         poller.ModeHeat,
			readings:     []float64{17.0, 19.5},
			wantCritical: false,
		},
		{
			name:         "heating, inactive room critical",
			mode:         poller.ModeHeat,
			readings:     []float64{17.0, 18.9},
			wantCritical: true,
		},
		{
			name:         "heating, active room critical on coldest sensor",
			mode:         poller.ModeHeat,
			readings:     []float64{17.0, 21.0},
			active:       true,
			wantSatiated: true,
			wantCritical: true,
		},
		{
			name:         "cooling, coolest sensor in deadband",
			mode:         poller.ModeCool,
			readings:     []float64{25.4, 27.0},
			wantSatiated: true,
		},
		{
			name:     "cooling, all sensors above deadband",
			mode:     poller.ModeCool,
			readings: []float64{25.6, 27.0},
		},
		{
			name:         "cooling, inactive room critical",
			mode:         poller.ModeCool,
			readings:     []float64{27.0, 28.0},
			wantCritical: true,
		},
		{
			name:         "cooling, active room critical on warmest sensor",
			mode:         poller.ModeCool,
			readings:     []float64{25.0, 27.5},
			active:       true,
			wantSatiated: true,
			wantCritical: true,
		},
		{
			name:         "heat_cool, reading within band",
			mode:         poller.ModeHeatCool,
			readings:     []float64{23.0},
			wantSatiated: true,
		},
		{
			name:     "heat_cool, all readings outside band",
			mode:     poller.ModeHeatCool,
			readings: []float64{20.0, 26.0},
		},
		{
			name:         "heat_cool, cold side critical",
			mode:         poller.ModeHeatCool,
			readings:     []float64{18.5},
			wantCritical: true,
		},
		{
			name:         "heat_cool, hot side critical",
			mode:         poller.ModeHeatCool,
			readings:     []float64{27.5},
			wantCritical: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			in.Mode = tt.mode
			in.Readings = tt.readings
			in.Active = tt.active
			c := classify(in)
			assert.Equal(t, tt.wantUnknown, c.Unknown, "unknown")
			assert.Equal(t, tt.wantSatiated, c.Satiated, "satiated")
			assert.Equal(t, tt.wantCritical, c.Critical, "critical")
		})
	}
}

func TestClassify_Distance(t *testing.T) {
	in := classifierInput{
		Mode:       poller.ModeHeat,
		Readings:   []float64{19.0},
		HeatTarget: 21.0,
		CoolTarget: 25.0,
		Deadband:   0.5,
	}
	assert.Equal(t, 2.0, classify(in).Distance)

	in.Mode = poller.ModeCool
	assert.Equal(t, 6.0, classify(in).Distance)

	in.Mode = poller.ModeHeatCool
	assert.Equal(t, 2.0, classify(in).Distance)

	in.Readings = []float64{26.0}
	assert.Equal(t, 1.0, classify(in).Distance)
}

func TestInferMode(t *testing.T) {
	tests := []struct {
		name    string
		average float64
		want    poller.SystemMode
	}{
		{name: "cold", average: 18.0, want: poller.ModeHeat},
		{name: "hot", average: 27.0, want: poller.ModeCool},
		{name: "comfortable", average: 23.0, want: poller.ModeHeatCool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferMode(tt.average, 21.0, 25.0))
		})
	}
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "active", ClassificationActive.String())
	assert.Equal(t, "critical-only", ClassificationCriticalOnly.String())
	assert.Equal(t, "excluded", ClassificationExcluded.String())
}
