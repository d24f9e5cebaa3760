package scoring

// Dimension names a scorable questionnaire field.
type Dimension string

const (
	Accredited         Dimension = "accredited"
	SaleTimeline       Dimension = "sale_timeline"
	EquityBracket      Dimension = "equity_bracket"
	InvestmentHorizon  Dimension = "investment_horizon"
	TargetReturn       Dimension = "target_return"
	PassiveImportance  Dimension = "passive_importance"
	ExchangeExperience Dimension = "exchange_experience"
	IntermediaryStatus Dimension = "intermediary_status"
	MortgageBracket    Dimension = "mortgage_bracket"
	RiskTolerance      Dimension = "risk_tolerance"
	AdvisorEngagement  Dimension = "advisor_engagement"
)

// Required dimensions must be answered before scoring; the rest are optional.
var (
	RequiredCategorical = []Dimension{Accredited, SaleTimeline, EquityBracket, InvestmentHorizon, TargetReturn}
	RequiredRatings     = []Dimension{PassiveImportance}
	OptionalCategorical = []Dimension{ExchangeExperience, IntermediaryStatus, MortgageBracket, AdvisorEngagement}
	OptionalRatings     = []Dimension{RiskTolerance}
)

// Answers is one questionnaire submission. Ratings use 0 for "unanswered".
type Answers struct {
	Accredited        string `json:"accredited"`
	SaleTimeline      string `json:"sale_timeline"`
	EquityBracket     string `json:"equity_bracket"`
	InvestmentHorizon string `json:"investment_horizon"`
	TargetReturn      string `json:"target_return"`
	PassiveImportance int    `json:"passive_importance"`

	ExchangeExperience string `json:"exchange_experience,omitempty"`
	IntermediaryStatus string `json:"intermediary_status,omitempty"`
	MortgageBracket    string `json:"mortgage_bracket,omitempty"`
	RiskTolerance      int    `json:"risk_tolerance,omitempty"`
	AdvisorEngagement  string `json:"advisor_engagement,omitempty"`

	// Not scored.
	Notes            string `json:"notes,omitempty"`
	ConsultRequested *bool  `json:"consult_requested,omitempty"`
}

func (a Answers) choice(d Dimension) string {
	switch d {
	case Accredited:
		return a.Accredited
	case SaleTimeline:
		return a.SaleTimeline
	case EquityBracket:
		return a.EquityBracket
	case InvestmentHorizon:
		return a.InvestmentHorizon
	case TargetReturn:
		return a.TargetReturn
	case ExchangeExperience:
		return a.ExchangeExperience
	case IntermediaryStatus:
		return a.IntermediaryStatus
	case MortgageBracket:
		return a.MortgageBracket
	case AdvisorEngagement:
		return a.AdvisorEngagement
	}
	return ""
}

func (a Answers) rating(d Dimension) int {
	switch d {
	case PassiveImportance:
		return a.PassiveImportance
	case RiskTolerance:
		return a.RiskTolerance
	}
	return 0
}
