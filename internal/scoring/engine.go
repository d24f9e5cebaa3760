// Package scoring turns questionnaire answers into a lead score and segment.
//
// Weights live in a Schedule so they can be swapped without touching the
// lookup logic. The engine is pure: the same answers always produce the same
// Result, and unknown or missing values contribute nothing.
package scoring

// Result is the outcome of one scoring pass.
type Result struct {
	Score   int     `json:"score"`
	Segment Segment `json:"segment"`
}

// Engine scores answers against a fixed schedule. It is safe for concurrent use.
type Engine struct {
	schedule *Schedule
}

// NewEngine binds an engine to schedule, falling back to DefaultSchedule when nil.
func NewEngine(schedule *Schedule) *Engine {
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	return &Engine{schedule: schedule}
}

// Schedule exposes the weight table the engine was built with.
func (e *Engine) Schedule() *Schedule { return e.schedule }

// Score sums per-dimension weights and buckets the total.
func (e *Engine) Score(a Answers) Result {
	score := 0
	for d, table := range e.schedule.Categorical {
		score += table[a.choice(d)]
	}
	for d := range e.schedule.Ratings {
		score += e.ratingWeight(d, a.rating(d))
	}
	seg := e.segmentFor(score)
	if o := e.schedule.Override; o.Dimension != "" && a.choice(o.Dimension) == o.Value {
		seg = e.schedule.Bottom
	}
	return Result{Score: score, Segment: seg}
}

// Weight reports the contribution of value on dimension d; 0 when unknown.
func (e *Engine) Weight(d Dimension, value string) int {
	return e.schedule.Categorical[d][value]
}

// RatingWeight reports the contribution of rating r on dimension d; 0 when out of range.
func (e *Engine) RatingWeight(d Dimension, r int) int {
	return e.ratingWeight(d, r)
}

// Qualified reports whether seg is one of the two highest tiers.
func (e *Engine) Qualified(seg Segment) bool {
	for i, t := range e.schedule.Thresholds {
		if i >= 2 {
			break
		}
		if t.Segment == seg {
			return true
		}
	}
	return false
}

// Segments lists every tier from highest to lowest.
func (e *Engine) Segments() []Segment {
	out := make([]Segment, 0, len(e.schedule.Thresholds)+1)
	for _, t := range e.schedule.Thresholds {
		out = append(out, t.Segment)
	}
	return append(out, e.schedule.Bottom)
}

func (e *Engine) ratingWeight(d Dimension, r int) int {
	w := e.schedule.Ratings[d]
	if r < 1 || r > len(w) {
		return 0
	}
	v := w[r-1]
	if limit := e.schedule.RatingCap; limit > 0 && v > limit {
		v = limit
	}
	return v
}

func (e *Engine) segmentFor(score int) Segment {
	for _, t := range e.schedule.Thresholds {
		if score >= t.Min {
			return t.Segment
		}
	}
	return e.schedule.Bottom
}
