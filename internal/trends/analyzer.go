package trends

// Trend classification constants. Changes within the ±20% band count as
// noise and keep the stable label.
const (
	// minPointsForTrend is roughly eight weeks of weekly granularity
	minPointsForTrend = 8
	// trendWindow is how many trailing points form each comparison half
	trendWindow = 4
	risingFactor  = 1.2
	fallingFactor = 0.8
)

// Analyze turns a raw score series into summary statistics and a trend
// classification. Pure function: same series in, same result out.
func Analyze(keyword string, series Series) Result {
	if len(series) == 0 {
		return Result{
			Keyword:    keyword,
			Direction:  DirectionNoData,
			DataPoints: Series{},
		}
	}

	sum := 0
	peak := series[0]
	for _, v := range series {
		sum += v
		if v > peak {
			peak = v
		}
	}

	return Result{
		Keyword:      keyword,
		CurrentScore: series[len(series)-1],
		AverageScore: sum / len(series),
		PeakScore:    peak,
		Direction:    classify(series),
		DataPoints:   series,
	}
}

// classify compares the mean of the last four points against the four
// before them.
func classify(series Series) Direction {
	if len(series) < minPointsForTrend {
		return DirectionInsufficientData
	}

	recent := mean(series[len(series)-trendWindow:])
	previous := mean(series[len(series)-2*trendWindow : len(series)-trendWindow])

	switch {
	case recent > previous*risingFactor:
		return DirectionRising
	case recent < previous*fallingFactor:
		return DirectionFalling
	default:
		return DirectionStable
	}
}

func mean(points Series) float64 {
	sum := 0
	for _, v := range points {
		sum += v
	}
	return float64(sum) / float64(len(points))
}
