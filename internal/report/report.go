// Package report renders the downloadable plain-text screening report.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// DateLayout is the layout of the report's Date line.
const DateLayout = "2006-01-02 15:04:05 MST"

const reportTemplate = `MULTIMODAL PARKINSON'S DISEASE SCREENING REPORT
===============================================

Date: {{ .Date }}
{{- if .AssessmentID }}
Assessment ID: {{ .AssessmentID }}
{{- end }}

PATIENT INFORMATION
-------------------
Patient ID: {{ or .Patient.PatientID "N/A" }}
Name: {{ or .Patient.Name "N/A" }}
Age: {{ if .Patient.Age }}{{ .Patient.Age }}{{ else }}N/A{{ end }}
Sex: {{ or .Patient.Sex "N/A" }}
{{- if .Patient.Notes }}
Notes: {{ .Patient.Notes }}
{{- end }}

FINAL RESULTS
-------------
Prediction: {{ .Outcome.PredictionLabel }}
Confidence: {{ percent .Outcome.Confidence }}
Probability (Parkinson's): {{ percent .Outcome.ProbabilityPositive }}
Probability (Healthy): {{ percent .Outcome.ProbabilityNegative }}
Risk Level: {{ band .Outcome.RiskBand }}

MODELS USED
-----------
{{- range .Models }}
- {{ .Name }} (weight {{ percent .Weight }}): {{ .Prediction }}, confidence {{ percent .Confidence }}
{{- end }}

PROCESSING TIME
---------------
Total: {{ printf "%.2f" .Outcome.TotalProcessingTimeSeconds }} seconds

CLINICAL SUMMARY
----------------
{{ .Outcome.ClinicalSummary }}
{{- if .Outcome.Findings }}

FINDINGS
--------
{{- range .Outcome.Findings }}
- {{ . }}
{{- end }}
{{- end }}

RECOMMENDATIONS
---------------
{{- range .Outcome.Recommendations }}
- {{ . }}
{{- end }}
{{- if .Notes }}

ANALYZER NOTES
--------------
{{- range .Notes }}
- {{ . }}
{{- end }}
{{- end }}

This report is a screening aid and not a diagnosis. Results must be reviewed by a qualified clinician.
`

var funcs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
	"band": func(b domain.RiskBand) string {
		return strings.ReplaceAll(string(b), "_", "-")
	},
}

var tmpl = template.Must(template.New("report").Funcs(funcs).Parse(reportTemplate))

// Input is everything a report is rendered from.
type Input struct {
	AssessmentID string
	Patient      domain.PatientMetadata
	Results      []domain.ModalityResult
	Outcome      domain.FusionOutcomeView
	Notes        []string
	GeneratedAt  time.Time
}

type modelLine struct {
	Name       string
	Weight     float64
	Prediction string
	Confidence float64
}

type view struct {
	Date         string
	AssessmentID string
	Patient      domain.PatientMetadata
	Outcome      domain.FusionOutcomeView
	Models       []modelLine
	Notes        []string
}

// Render produces the plain-text report. Output depends only on in, so a
// fixed GeneratedAt yields byte-identical reports.
func Render(in Input) (string, error) {
	byModality := make(map[domain.Modality]domain.ModalityResult, len(in.Results))
	for _, r := range in.Results {
		byModality[r.Modality] = r
	}

	v := view{
		Date:         in.GeneratedAt.Format(DateLayout),
		AssessmentID: in.AssessmentID,
		Patient:      in.Patient,
		Outcome:      in.Outcome,
		Notes:        in.Notes,
	}
	for _, m := range in.Outcome.ModalitiesUsed {
		line := modelLine{Name: m.DisplayName(), Weight: in.Outcome.EffectiveWeights[m], Prediction: "N/A"}
		if r, ok := byModality[m]; ok {
			line.Prediction = r.Prediction.Label()
			line.Confidence = r.Confidence
		}
		v.Models = append(v.Models, line)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// FromRecord builds report input for a stored assessment.
func FromRecord(record *domain.AssessmentRecord, generatedAt time.Time) Input {
	return Input{
		AssessmentID: record.ID,
		Patient:      record.Patient,
		Results:      record.Results,
		Outcome:      record.Outcome,
		Notes:        record.AnalyzerNotes,
		GeneratedAt:  generatedAt,
	}
}

// Filename returns the attachment name used when the report is downloaded.
func Filename(assessmentID string, generatedAt time.Time) string {
	if assessmentID == "" {
		assessmentID = "screening"
	}
	return fmt.Sprintf("parkinsons-screening-%s-%s.txt", assessmentID, generatedAt.UTC().Format("20060102-150405"))
}
