package domain

import (
	"time"
)

// AssessmentRecord represents a stored screening assessment: the inputs the
// analyzers produced, the fusion configuration in force, and the outcome.
type AssessmentRecord struct {
	ID            string            `json:"id"`
	RequestID     string            `json:"request_id,omitempty"`
	Patient       PatientMetadata   `json:"patient"`
	Results       []ModalityResult  `json:"results"`
	Config        FusionConfig      `json:"config"`
	Outcome       FusionOutcomeView `json:"outcome"`
	AnalyzerNotes []string          `json:"analyzer_notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// AssessmentSummary is the list-view projection of an AssessmentRecord.
type AssessmentSummary struct {
	ID                  string     `json:"id"`
	PatientID           string     `json:"patient_id,omitempty"`
	Prediction          Prediction `json:"prediction"`
	ProbabilityPositive float64    `json:"probability_positive"`
	RiskBand            RiskBand   `json:"risk_band"`
	ModalitiesUsed      []Modality `json:"modalities_used"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Summary projects the record for list responses.
func (r *AssessmentRecord) Summary() AssessmentSummary {
	return AssessmentSummary{
		ID:                  r.ID,
		PatientID:           r.Patient.PatientID,
		Prediction:          r.Outcome.Prediction,
		ProbabilityPositive: r.Outcome.ProbabilityPositive,
		RiskBand:            r.Outcome.RiskBand,
		ModalitiesUsed:      append([]Modality(nil), r.Outcome.ModalitiesUsed...),
		CreatedAt:           r.CreatedAt,
	}
}

// LabeledCase pairs the modality results of one assessment with the
// clinician-confirmed diagnosis. Labeled cases drive fusion evaluation and
// weight optimisation.
type LabeledCase struct {
	AssessmentID string           `json:"assessment_id,omitempty" yaml:"assessment_id,omitempty"`
	Results      []ModalityResult `json:"results" yaml:"results"`
	Label        Prediction       `json:"label" yaml:"label"`
}
