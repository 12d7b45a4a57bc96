package trends

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_EmptySeries(t *testing.T) {
	result := Analyze("ghost keyword", Series{})

	assert.Equal(t, DirectionNoData, result.Direction)
	assert.Equal(t, 0, result.CurrentScore)
	assert.Equal(t, 0, result.AverageScore)
	assert.Equal(t, 0, result.PeakScore)
	assert.Empty(t, result.DataPoints)
}

func TestAnalyze_Rising(t *testing.T) {
	// recent mean 65 vs previous mean 25; 65 > 25*1.2
	result := Analyze("dog bed", Series{10, 20, 30, 40, 50, 60, 70, 80})

	assert.Equal(t, DirectionRising, result.Direction)
	assert.Equal(t, 80, result.CurrentScore)
	assert.Equal(t, 45, result.AverageScore)
	assert.Equal(t, 80, result.PeakScore)
}

func TestAnalyze_Falling(t *testing.T) {
	result := Analyze("fidget spinner", Series{80, 70, 60, 50, 40, 30, 20, 10})

	assert.Equal(t, DirectionFalling, result.Direction)
	assert.Equal(t, 10, result.CurrentScore)
	assert.Equal(t, 80, result.PeakScore)
}

func TestAnalyze_Stable(t *testing.T) {
	result := Analyze("cat toy", Series{50, 50, 50, 50, 50, 50, 50, 50})

	assert.Equal(t, DirectionStable, result.Direction)
	assert.Equal(t, 50, result.CurrentScore)
	assert.Equal(t, 50, result.AverageScore)
}

func TestAnalyze_NoiseBandDoesNotFlipLabel(t *testing.T) {
	// recent mean 55 vs previous mean 50: within the ±20% band
	result := Analyze("pet feeder", Series{50, 50, 50, 50, 55, 55, 55, 55})

	assert.Equal(t, DirectionStable, result.Direction)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	result := Analyze("new product", Series{10, 20, 30})

	assert.Equal(t, DirectionInsufficientData, result.Direction)
	assert.Equal(t, 30, result.CurrentScore)
	assert.Equal(t, 20, result.AverageScore)
	assert.Equal(t, 30, result.PeakScore)
}

func TestAnalyze_AverageTruncates(t *testing.T) {
	// mean 10.5 floors to 10
	result := Analyze("x", Series{10, 11})

	assert.Equal(t, 10, result.AverageScore)
}

func TestAnalyze_Pure(t *testing.T) {
	series := Series{10, 20, 30, 40, 50, 60, 70, 80}

	first := Analyze("dog bed", series)
	second := Analyze("dog bed", series)

	assert.Equal(t, first, second)
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{Keyword: "dog bed", Timeframe: "today 3-m", Geo: "US"}
	assert.NoError(t, valid.Validate())

	empty := Request{Keyword: "  ", Timeframe: "today 3-m", Geo: "US"}
	assert.Error(t, empty.Validate())

	badTimeframe := Request{Keyword: "dog bed", Timeframe: "yesterday", Geo: "US"}
	assert.Error(t, badTimeframe.Validate())

	noGeo := Request{Keyword: "dog bed", Timeframe: "today 3-m"}
	assert.Error(t, noGeo.Validate())
}

func TestIsSupportedTimeframe(t *testing.T) {
	assert.True(t, IsSupportedTimeframe("today 3-m"))
	assert.True(t, IsSupportedTimeframe("today 12-m"))
	assert.True(t, IsSupportedTimeframe("today 5-y"))
	assert.False(t, IsSupportedTimeframe("today 1-d"))
}
