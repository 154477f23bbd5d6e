package salary

import (
	"math"
	"sync"
)

type Source string

const (
	SourceActual   Source = "actual"
	SourceAnchor   Source = "anchor"
	SourceWeighted Source = "weighted"
	SourceClamped  Source = "clamped"
)

// Tolerance is the distance in USD within which a blended value snaps back
// to the reported one.
const Tolerance = 100.0

type Weights struct {
	Actual float64
	Anchor float64
}

var (
	InRangeWeights    = Weights{Actual: 0.7, Anchor: 0.3}
	OutOfRangeWeights = Weights{Actual: 0.35, Anchor: 0.65}
)

type AnchoredSalary struct {
	AnnualUSD float64 `json:"annualUSD"`
	Source    Source  `json:"source"`
	Anchor    *Anchor `json:"-"`
	AnchorID  string  `json:"anchorId,omitempty"`
}

type Blender struct {
	anchors []Anchor
}

// NewBlender uses the default anchors when none are given.
func NewBlender(anchors ...Anchor) *Blender {
	if len(anchors) == 0 {
		anchors = DefaultAnchors()
	}
	return &Blender{anchors: anchors}
}

func (b *Blender) Anchors() []Anchor {
	out := make([]Anchor, len(b.anchors))
	copy(out, b.anchors)
	return out
}

// Find returns the first anchor whose criteria match the title.
func (b *Blender) Find(title string) (*Anchor, bool) {
	if title == "" {
		return nil, false
	}
	profile := BuildProfile(title)
	for i := range b.anchors {
		for _, criterion := range b.anchors[i].Criteria {
			if criterion.Matches(profile) {
				return &b.anchors[i], true
			}
		}
	}
	return nil, false
}

// Apply blends a reported annual salary against the reference band for the
// title. annualUSD may be nil when no salary was reported. The second
// return value is false when no band matches the title, in which case no
// blending happens.
func (b *Blender) Apply(title string, annualUSD *float64) (AnchoredSalary, bool) {
	anchor, ok := b.Find(title)
	if !ok {
		return AnchoredSalary{}, false
	}

	if annualUSD == nil || math.IsNaN(*annualUSD) {
		return AnchoredSalary{AnnualUSD: anchor.Median, Source: SourceAnchor, Anchor: anchor, AnchorID: anchor.ID}, true
	}

	reported := *annualUSD
	var blended float64
	switch {
	case reported < anchor.Minimum:
		blended = weightedAverage(reported, anchor.Minimum, OutOfRangeWeights)
	case reported > anchor.Maximum:
		blended = weightedAverage(reported, anchor.Maximum, OutOfRangeWeights)
	default:
		blended = weightedAverage(reported, anchor.Median, InRangeWeights)
	}

	result := math.Min(math.Max(blended, anchor.Minimum), anchor.Maximum)
	source := SourceWeighted
	if result != blended {
		source = SourceClamped
	}

	if math.Abs(result-reported) <= Tolerance {
		result = reported
		source = SourceActual
	}

	return AnchoredSalary{AnnualUSD: result, Source: source, Anchor: anchor, AnchorID: anchor.ID}, true
}

func weightedAverage(actual, reference float64, w Weights) float64 {
	return (actual*w.Actual + reference*w.Anchor) / (w.Actual + w.Anchor)
}

// Usage tallies blend outcomes over a run. It is safe for concurrent use.
type Usage struct {
	mu       sync.Mutex
	bySource map[Source]int
	noAnchor int
}

func (u *Usage) Record(result AnchoredSalary, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !ok {
		u.noAnchor++
		return
	}
	if u.bySource == nil {
		u.bySource = make(map[Source]int)
	}
	u.bySource[result.Source]++
}

func (u *Usage) Count(source Source) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bySource[source]
}

func (u *Usage) NoAnchor() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.noAnchor
}
