package scoring

import (
	"sort"
	"strings"
)

// FieldErrors maps a questionnaire field to what is wrong with it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid answers: " + strings.Join(parts, "; ")
}

// ValidateAnswers checks answers against the schedule's vocabulary. Required fields
// must be present; optional fields are checked only when supplied.
func (s *Schedule) ValidateAnswers(a Answers) error {
	fe := FieldErrors{}
	for _, d := range RequiredCategorical {
		v := a.choice(d)
		if v == "" {
			fe[string(d)] = "required"
			continue
		}
		if _, ok := s.Categorical[d][v]; !ok {
			fe[string(d)] = "unknown choice " + v
		}
	}
	for _, d := range OptionalCategorical {
		v := a.choice(d)
		if v == "" {
			continue
		}
		if _, ok := s.Categorical[d][v]; !ok {
			fe[string(d)] = "unknown choice " + v
		}
	}
	for _, d := range RequiredRatings {
		if r := a.rating(d); r < 1 || r > RatingPoints {
			fe[string(d)] = "must be between 1 and 5"
		}
	}
	for _, d := range OptionalRatings {
		if r := a.rating(d); r != 0 && (r < 1 || r > RatingPoints) {
			fe[string(d)] = "must be between 1 and 5"
		}
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

// Validate checks answers against the engine's schedule.
func (e *Engine) Validate(a Answers) error {
	return e.schedule.ValidateAnswers(a)
}
