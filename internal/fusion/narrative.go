package fusion

import (
	"fmt"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// Narrative is the fixed clinical text attached to a risk band.
type Narrative struct {
	Summary         string
	Recommendations []string
}

var narratives = map[domain.RiskBand]Narrative{
	domain.RiskLow: {
		Summary: "Multi-modal analysis shows no significant indicators of Parkinson's disease. " +
			"All analyzed modalities are within normal ranges.",
		Recommendations: []string{
			"Continue routine health monitoring",
			"No immediate follow-up required",
			"Maintain a regular exercise routine",
			"Schedule an annual neurological check-up",
		},
	},
	domain.RiskLowModerate: {
		Summary: "Multi-modal analysis suggests a low to moderate risk of Parkinson's disease. " +
			"Findings do not meet the threshold for a positive screen.",
		Recommendations: []string{
			"Continue routine monitoring",
			"Consider repeat screening in 6 to 12 months",
			"Monitor for new or worsening motor or speech symptoms",
			"Maintain a regular exercise routine",
		},
	},
	domain.RiskModerate: {
		Summary: "Multi-modal analysis indicates a moderate risk of Parkinson's disease. " +
			"Follow-up evaluation is recommended to confirm the findings.",
		Recommendations: []string{
			"Schedule a follow-up neurological evaluation within 2 weeks",
			"Consider additional diagnostic testing",
			"Monitor for symptom progression",
			"Begin a baseline motor function assessment",
		},
	},
	domain.RiskHigh: {
		Summary: "Multi-modal analysis indicates a high risk of Parkinson's disease. " +
			"Comprehensive neurological evaluation is recommended without delay.",
		Recommendations: []string{
			"Schedule a comprehensive neurological evaluation immediately",
			"Refer to a movement disorder specialist",
			"Begin a baseline motor function assessment",
			"Discuss the findings and next steps with the patient and family",
		},
	},
}

// NarrativeFor returns the summary and recommendations for band. The returned
// recommendation slice is a copy.
func NarrativeFor(band domain.RiskBand) Narrative {
	n, ok := narratives[band]
	if !ok {
		n = narratives[domain.RiskLow]
	}
	return Narrative{
		Summary:         n.Summary,
		Recommendations: append([]string(nil), n.Recommendations...),
	}
}

// Findings describes each modality's own signal in canonical order. A
// modality counts as abnormal when it predicted POSITIVE itself.
func Findings(results []domain.ModalityResult) []string {
	byModality := make(map[domain.Modality]domain.ModalityResult, len(results))
	for _, r := range results {
		byModality[r.Modality] = r
	}

	var findings []string
	for _, m := range domain.AllModalities() {
		r, ok := byModality[m]
		if !ok {
			continue
		}
		findings = append(findings, finding(r))
	}
	return findings
}

func finding(r domain.ModalityResult) string {
	pct := r.ProbabilityPositive * 100
	if r.Prediction != domain.POSITIVE {
		return fmt.Sprintf("%s: within normal range (%.1f%% positive probability).", r.Modality.DisplayName(), pct)
	}
	switch r.Modality {
	case domain.VOICE:
		return fmt.Sprintf("Voice Analysis: characteristic vocal changes detected (%.1f%% positive probability).", pct)
	case domain.IMAGING:
		return fmt.Sprintf("DaTscan Imaging: reduced dopamine transporter uptake (%.1f%% positive probability).", pct)
	default:
		return fmt.Sprintf("Spiral Drawing: motor control irregularities detected (%.1f%% positive probability).", pct)
	}
}
