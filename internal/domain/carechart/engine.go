package carechart

import (
	"fmt"
	"strings"
	"time"
)

// BaselineLabel marks the synthetic leading point added to charts with fewer
// than two submissions.
const BaselineLabel = "Default"

// LabelLayout is the day/month/year layout used for chart labels.
const LabelLayout = "02/01/2006"

// progression is the per-question fold state.
type progression struct {
	value         int
	previousDelta int
	started       bool
}

// advance returns the unclamped value after applying delta. Only a worsening
// step that follows another worsening step is direction-aware; everything else
// accumulates.
func (p progression) advance(delta int) int {
	if !p.started || p.previousDelta >= 0 || delta >= 0 {
		return p.value + delta
	}
	cur, prev := abs(delta), abs(p.previousDelta)
	switch {
	case cur > prev:
		// worsening accelerates: only the excess counts
		return p.value - (cur - prev)
	case cur < prev:
		// worsening slows down: the reduction counts as improvement
		return p.value + (prev - cur)
	default:
		return p.value
	}
}

// step applies one submission's delta and returns the next state.
func (p progression) step(delta int, b Bounds) progression {
	return progression{value: b.clamp(p.advance(delta)), previousDelta: delta, started: true}
}

// clamp bounds v to [Min, Max] and then floors it at 0.
func (b Bounds) clamp(v int) int {
	if v > b.Max {
		v = b.Max
	} else if v < b.Min {
		v = b.Min
	}
	if v < 0 {
		v = 0
	}
	return v
}

// BuildChart folds the submissions, which must already be sorted by authored
// time, into one progression series per question. It has no side effects and
// is safe for concurrent use.
//
// Answers whose index falls outside 1..len(questions) are ignored. Bounds that
// violate Min <= Initial <= Max produce undefined output.
func BuildChart(submissions []*Submission, questions []Question, b Bounds) Chart {
	labels := make([]string, 0, len(submissions)+1)
	series := make([][]int, len(questions))
	states := make([]progression, len(questions))
	for i := range states {
		states[i] = progression{value: b.Initial}
		series[i] = make([]int, 0, len(submissions)+1)
	}

	for _, sub := range submissions {
		labels = append(labels, sub.Authored.Format(LabelLayout))
		for i := range questions {
			states[i] = states[i].step(sub.Answers[i+1], b)
			series[i] = append(series[i], states[i].value)
		}
	}

	if len(submissions) < 2 {
		labels = append([]string{BaselineLabel}, labels...)
		for i := range series {
			series[i] = append([]int{b.Initial}, series[i]...)
		}
	}

	datasets := make([]Dataset, len(questions))
	for i, q := range questions {
		datasets[i] = newDataset(i, q.Text, series[i])
	}

	return Chart{Labels: labels, Datasets: datasets}
}

// Last returns the chart limited to its n most recent points. The values are
// those of the full fold, so trimming never changes a point. n <= 0 keeps
// everything.
func (c Chart) Last(n int) Chart {
	if n <= 0 || len(c.Labels) <= n {
		return c
	}
	cut := len(c.Labels) - n
	out := Chart{Labels: c.Labels[cut:], Datasets: make([]Dataset, len(c.Datasets))}
	for i, ds := range c.Datasets {
		ds.Data = ds.Data[cut:]
		out.Datasets[i] = ds
	}
	return out
}

// newDataset attaches presentation metadata derived only from the question
// position.
func newDataset(index int, label string, data []int) Dataset {
	return Dataset{
		Label:            label,
		Data:             data,
		BorderColor:      fmt.Sprintf("hsl(%d, 70%%, 50%%)", (index*24)%360),
		BackgroundColor:  "transparent",
		BorderWidth:      2,
		Tension:          0.4,
		PointRadius:      3,
		PointHoverRadius: 5,
	}
}

var authoredLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseAuthored parses a FHIR authored timestamp. Zone-less values, which the
// checkup form writes, are read as UTC.
func ParseAuthored(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range authoredLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable authored timestamp %q", s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
