package services

import "time"

// ScoreCount is the number of questionnaire items; every submission carries
// exactly one score per item.
const ScoreCount = 2

// ScoreMax is the highest value a single questionnaire answer can take.
const ScoreMax = 3

// AssessmentRecord is a single maturity self-assessment. A record is created
// once by a submission (Finalized=false) and updated at most once by a
// finalization (Finalized=true, AssessedStage set); both paths are full-record
// replaces keyed by SessionID.
type AssessmentRecord struct {
	SessionID      string    `json:"sessionId"`
	Team           string    `json:"team"`
	SubmitterName  string    `json:"submitterName,omitempty"`
	SuggestedStage int       `json:"suggestedStage"`
	AssessedStage  *int      `json:"assessedStage"`
	Scores         []int     `json:"scores"`
	Finalized      bool      `json:"finalized"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AssessmentDate renders the submission date for display. It is derived from
// CreatedAt and never stored.
func (r *AssessmentRecord) AssessmentDate() string {
	return r.CreatedAt.Format("2006-01-02")
}

// AssessmentTime renders the submission time of day for display.
func (r *AssessmentRecord) AssessmentTime() string {
	return r.CreatedAt.Format("15:04:05")
}

// Clone returns a deep copy so view filtering never mutates stored records.
func (r *AssessmentRecord) Clone() *AssessmentRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.AssessedStage != nil {
		v := *r.AssessedStage
		out.AssessedStage = &v
	}
	out.Scores = append([]int(nil), r.Scores...)
	return &out
}

// View selects which fields of a record a read surface may see.
type View string

const (
	// ViewAdmin exposes every field, including the submitter's name.
	ViewAdmin View = "admin"
	// ViewPublic strips the submitter's name for anonymized dashboards.
	ViewPublic View = "public"
)
