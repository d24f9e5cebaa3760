package registration

import (
	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/scoring"
)

// StageName is the wire name of a stage.
type StageName string

const (
	StageCredentials   StageName = "credentials"
	StageProfile       StageName = "profile"
	StageQuestionnaire StageName = "questionnaire"
	StageResult        StageName = "result"
	StageCompleted     StageName = "completed"
)

// Stage is one state of the registration flow. Each implementation carries
// only the data collected up to that point.
type Stage interface {
	Name() StageName
	sealed()
}

// Credentials are retained once validated. The plaintext password is hashed
// on entry and never kept.
type Credentials struct {
	Email    string
	PassHash []byte
}

// Profile is the contact data from the second stage.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// CredentialsEntry is the initial stage; nothing is collected yet.
type CredentialsEntry struct{}

// ProfileEntry waits for the investor's name and phone.
type ProfileEntry struct {
	Credentials Credentials
}

// QuestionnaireEntry waits for a full set of answers.
type QuestionnaireEntry struct {
	Credentials Credentials
	Profile     Profile
	// Defaults holds the previous answers after a retake.
	Defaults *scoring.Answers
}

// ResultPresentation shows the score and waits for complete or retake.
type ResultPresentation struct {
	Credentials Credentials
	Profile     Profile
	Answers     scoring.Answers
	Result      scoring.Result
}

// Completed holds the persisted user.
type Completed struct {
	User *models.User
}

func (CredentialsEntry) Name() StageName   { return StageCredentials }
func (ProfileEntry) Name() StageName       { return StageProfile }
func (QuestionnaireEntry) Name() StageName { return StageQuestionnaire }
func (ResultPresentation) Name() StageName { return StageResult }
func (Completed) Name() StageName          { return StageCompleted }

func (CredentialsEntry) sealed()   {}
func (ProfileEntry) sealed()       {}
func (QuestionnaireEntry) sealed() {}
func (ResultPresentation) sealed() {}
func (Completed) sealed()          {}
