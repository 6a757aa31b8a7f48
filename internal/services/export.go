package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
)

// ExportAssessmentsCSV renders records into the flat CSV the admin dashboard
// downloads. Callers pass an admin-view record set; the public view would
// leave the submitter column empty.
func ExportAssessmentsCSV(records []*AssessmentRecord) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{
		"submitter_name", "team", "assessed_stage", "suggested_stage",
		"scores", "average_score", "finalized", "assessment_date", "assessment_time",
	})
	for _, rec := range records {
		assessed := rec.SuggestedStage
		if rec.AssessedStage != nil {
			assessed = *rec.AssessedStage
		}
		row := []string{
			rec.SubmitterName,
			rec.Team,
			strconv.Itoa(assessed),
			strconv.Itoa(rec.SuggestedStage),
			joinScores(rec.Scores),
			averageScoreString(rec.Scores),
			strconv.FormatBool(rec.Finalized),
			rec.AssessmentDate(),
			rec.AssessmentTime(),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func joinScores(scores []int) string {
	parts := make([]string, 0, len(scores))
	for _, s := range scores {
		parts = append(parts, strconv.Itoa(s))
	}
	return strings.Join(parts, "|")
}

func averageScoreString(scores []int) string {
	if len(scores) == 0 {
		return "0"
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return strconv.FormatFloat(float64(sum)/float64(len(scores)), 'f', 1, 64)
}
