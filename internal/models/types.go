package models

import "time"

// Roles a persisted user can hold.
const (
	RoleInvestor = "investor"
	RoleAdmin    = "admin"
)

// User is a registered investor. The accreditation fields are a snapshot of
// the questionnaire result at registration (or the last explicit requalify);
// nothing recomputes them automatically.
type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	PassHash             []byte     `json:"-"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name"`
	Phone                string     `json:"phone,omitempty"`
	Role                 string     `json:"role"`
	AccreditedStatus     bool       `json:"accredited_status"`
	AccreditationScore   int        `json:"accreditation_score"`
	AccreditationSegment string     `json:"accreditation_segment"`
	QuestionnaireAnswers string     `json:"questionnaire_answers,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	RequalifiedAt        *time.Time `json:"requalified_at,omitempty"`
}

// Accreditation is the derived part of a User that a rescore replaces.
type Accreditation struct {
	Status  bool
	Score   int
	Segment string
	Answers string
	At      time.Time
}

// FAQ is a public question/answer pair shown on the marketing site.
type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
	Order    int    `json:"order"`
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}
