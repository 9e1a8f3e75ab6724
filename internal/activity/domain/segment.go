package activity

// Point is one raw sample of the recorded absorbance trace.
type Point struct {
	Time      float64 // seconds from recorder start
	Intensity float64
}

// StepWindow is the analysis window attributed to one protocol step.
// Only steps that matched at least one sample produce a window.
type StepWindow struct {
	StepIndex     int
	Temperature   float64
	ReactorID     int
	TimeStart     float64
	TimeEnd       float64
	SampleCount   int
	MeanIntensity float64
}

// SegmentSteps maps every protocol step onto a trailing analysis window of
// its hold period and reduces matching samples to a mean intensity. The
// window starts after the early equilibration portion of the hold: with a
// 20 min hold and 10 min analysis time only the last 10 min are used.
// Windows that match no samples are dropped; the caller can compare the
// recording length against Protocol.TotalDuration to surface that.
func SegmentSteps(p Protocol, series []Point) ([]StepWindow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	for i := 1; i < len(series); i++ {
		if series[i].Time < series[i-1].Time {
			return nil, ErrTimeNotSorted
		}
	}

	origin := series[0].Time
	cumulative := 0.0
	windows := make([]StepWindow, 0, len(p.Steps))

	for i, step := range p.Steps {
		hold := step.HoldTime.Seconds()
		analysis := p.AnalysisTime.Seconds()
		if analysis > hold {
			// Holds shorter than the configured analysis window use the
			// whole hold.
			analysis = hold
		}

		holdStart := origin + cumulative
		windowStart := holdStart + (hold - analysis)
		windowEnd := holdStart + hold

		count := 0
		sum := 0.0
		for _, sample := range series {
			if sample.Time < windowStart {
				continue
			}
			if sample.Time > windowEnd {
				break
			}
			sum += sample.Intensity
			count++
		}

		if count > 0 {
			windows = append(windows, StepWindow{
				StepIndex:     i,
				Temperature:   step.Temperature,
				ReactorID:     step.ReactorID,
				TimeStart:     windowStart,
				TimeEnd:       windowEnd,
				SampleCount:   count,
				MeanIntensity: sum / float64(count),
			})
		}

		cumulative += hold + p.RampAfter(i).Seconds()
	}

	return windows, nil
}
