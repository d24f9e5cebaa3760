package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Segment is the coarse lead tier derived from a score.
type Segment string

const (
	SegmentDiamond Segment = "diamond"
	SegmentHot     Segment = "hot"
	SegmentWarm    Segment = "warm"
	SegmentCold    Segment = "cold"
)

// RatingPoints is the size of every rating scale (1..5).
const RatingPoints = 5

// Threshold is an inclusive lower bound for a segment.
type Threshold struct {
	Segment Segment `json:"segment"`
	Min     int     `json:"min"`
}

// Override forces the bottom segment when Dimension equals Value.
type Override struct {
	Dimension Dimension `json:"dimension"`
	Value     string    `json:"value"`
}

// Schedule is the weight table and tier layout the engine scores against.
// Thresholds are ordered from the highest tier down.
type Schedule struct {
	Categorical map[Dimension]map[string]int `json:"categorical"`
	Ratings     map[Dimension][]int          `json:"ratings"`
	RatingCap   int                          `json:"rating_cap"`
	Thresholds  []Threshold                  `json:"thresholds"`
	Bottom      Segment                      `json:"bottom"`
	Override    Override                     `json:"override"`
}

// DefaultSchedule returns the production weight table.
func DefaultSchedule() *Schedule {
	return &Schedule{
		Categorical: map[Dimension]map[string]int{
			Accredited: {"yes": 10, "not_sure": 0, "no": -25},
			SaleTimeline: {
				"actively_selling": 20,
				"within_6_months":  15,
				"within_12_months": 8,
				"exploring":        2,
				"not_selling":      -5,
			},
			EquityBracket:      {"under_500k": 2, "500k_1m": 8, "1m_3m": 15, "3m_plus": 20},
			InvestmentHorizon:  {"under_3_years": -5, "3_5_years": 3, "5_10_years": 8, "10_plus_years": 12},
			TargetReturn:       {"4_6": 10, "6_8": 6, "8_10": 2, "10_plus": -5},
			ExchangeExperience: {"none": 0, "one": 4, "multiple": 6},
			IntermediaryStatus: {"not_started": 0, "identifying": 4, "engaged": 8},
			MortgageBracket:    {"free_and_clear": 3, "under_50": 6, "over_50": 2},
			AdvisorEngagement:  {"none": 0, "cpa": 3, "cpa_and_attorney": 5},
		},
		Ratings: map[Dimension][]int{
			PassiveImportance: {0, 1, 3, 6, 10},
			RiskTolerance:     {1, 2, 3, 4, 5},
		},
		RatingCap: 10,
		Thresholds: []Threshold{
			{Segment: SegmentDiamond, Min: 70},
			{Segment: SegmentHot, Min: 50},
			{Segment: SegmentWarm, Min: 30},
		},
		Bottom:   SegmentCold,
		Override: Override{Dimension: Accredited, Value: "no"},
	}
}

// LoadSchedule reads a JSON schedule from path and validates it.
func LoadSchedule(path string) (*Schedule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var s Schedule
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode schedule %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schedule %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the structural invariants the engine relies on.
func (s *Schedule) Validate() error {
	if s == nil {
		return errors.New("nil schedule")
	}
	categorical := append(append([]Dimension{}, RequiredCategorical...), OptionalCategorical...)
	ratings := append(append([]Dimension{}, RequiredRatings...), OptionalRatings...)
	for d, table := range s.Categorical {
		if !hasDimension(categorical, d) {
			return fmt.Errorf("categorical weights for unknown dimension %q", d)
		}
		// An absent answer reads as "" and must contribute nothing.
		if _, ok := table[""]; ok {
			return fmt.Errorf("%s: empty choice key", d)
		}
	}
	for d := range s.Ratings {
		if !hasDimension(ratings, d) {
			return fmt.Errorf("rating weights for unknown dimension %q", d)
		}
	}
	for _, d := range categorical {
		if len(s.Categorical[d]) == 0 {
			return fmt.Errorf("no weights for %s", d)
		}
	}
	for _, d := range ratings {
		w := s.Ratings[d]
		if len(w) != RatingPoints {
			return fmt.Errorf("rating %s: want %d weights, got %d", d, RatingPoints, len(w))
		}
		for i, v := range w {
			if s.RatingCap > 0 && v > s.RatingCap {
				return fmt.Errorf("rating %s[%d]=%d exceeds cap %d", d, i+1, v, s.RatingCap)
			}
		}
	}
	if len(s.Thresholds) < 2 {
		return errors.New("at least two thresholds required")
	}
	seen := map[Segment]bool{s.Bottom: true}
	if s.Bottom == "" {
		return errors.New("bottom segment required")
	}
	for i, t := range s.Thresholds {
		if t.Segment == "" {
			return fmt.Errorf("threshold %d: segment required", i)
		}
		if seen[t.Segment] {
			return fmt.Errorf("threshold %d: duplicate segment %s", i, t.Segment)
		}
		seen[t.Segment] = true
		if i > 0 && t.Min >= s.Thresholds[i-1].Min {
			return fmt.Errorf("threshold %s: min %d must be below %d", t.Segment, t.Min, s.Thresholds[i-1].Min)
		}
	}
	if s.Override.Dimension != "" {
		if _, ok := s.Categorical[s.Override.Dimension][s.Override.Value]; !ok {
			return fmt.Errorf("override %s=%q is not a known choice", s.Override.Dimension, s.Override.Value)
		}
	}
	return nil
}

func hasDimension(dims []Dimension, d Dimension) bool {
	for _, x := range dims {
		if x == d {
			return true
		}
	}
	return false
}
