package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/feedback"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/service"
)

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "compute_fusion",
		Description: "Fuse per-modality screening results (voice, imaging, motor) into one prediction with confidence, risk band and clinical narrative. Nothing is stored.",
	}, s.handleComputeFusion)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "assess_patient",
		Description: "Fuse modality results for a patient and store the assessment. Returns the assessment id used by generate_report and submit_feedback.",
	}, s.handleAssessPatient)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "generate_report",
		Description: "Render the plain-text screening report for a stored assessment.",
	}, s.handleGenerateReport)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "submit_feedback",
		Description: "Record the clinician-confirmed diagnosis for an assessment. Resubmitting replaces the earlier entry.",
	}, s.handleSubmitFeedback)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "list_feedback",
		Description: "List recorded clinician feedback, newest first.",
	}, s.handleListFeedback)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "evaluate_weights",
		Description: "Score the active fusion weights, or the given override, against all clinician feedback.",
	}, s.handleEvaluateWeights)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "optimize_weights",
		Description: "Search base weights that best reproduce clinician feedback. Set apply to put an improved configuration into force.",
	}, s.handleOptimizeWeights)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "get_fusion_config",
		Description: "Show the active fusion strategy, base weights and positive threshold.",
	}, s.handleGetFusionConfig)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "export_feedback",
		Description: "Write all clinician feedback to a JSON file in the export directory.",
	}, s.handleExportFeedback)

	sdkmcp.AddTool(s.mcpServer, &sdkmcp.Tool{
		Name:        "import_feedback",
		Description: "Load clinician feedback from a JSON export. Assessments that already have feedback are skipped.",
	}, s.handleImportFeedback)
}

// --- Tool input/output types ---

type modalityResultInput struct {
	Modality              string  `json:"modality" jsonschema:"VOICE, IMAGING or MOTOR (datscan and spiral are accepted aliases)"`
	Prediction            string  `json:"prediction" jsonschema:"POSITIVE or NEGATIVE"`
	Confidence            float64 `json:"confidence" jsonschema:"analyzer confidence in [0,1]"`
	ProbabilityPositive   float64 `json:"probability_positive" jsonschema:"probability of the positive class in [0,1]"`
	ProbabilityNegative   float64 `json:"probability_negative" jsonschema:"probability of the negative class; the two must sum to 1"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty" jsonschema:"analyzer processing time in seconds"`
}

func (in modalityResultInput) result() (domain.ModalityResult, error) {
	m, err := domain.ParseModality(in.Modality)
	if err != nil {
		return domain.ModalityResult{}, err
	}
	p, err := domain.ParsePrediction(in.Prediction)
	if err != nil {
		return domain.ModalityResult{}, domain.NewFieldError(m, "prediction", err.Error(), in.Prediction)
	}
	return domain.ModalityResult{
		Modality:              m,
		Prediction:            p,
		Confidence:            in.Confidence,
		ProbabilityPositive:   in.ProbabilityPositive,
		ProbabilityNegative:   in.ProbabilityNegative,
		ProcessingTimeSeconds: in.ProcessingTimeSeconds,
	}, nil
}

func toResults(inputs []modalityResultInput) ([]domain.ModalityResult, error) {
	results := make([]domain.ModalityResult, 0, len(inputs))
	for _, in := range inputs {
		r, err := in.result()
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

type weightsOverride struct {
	Weights           map[string]float64 `json:"weights,omitempty" jsonschema:"base weight per modality; all three modalities, summing to 1"`
	PositiveThreshold *float64           `json:"positive_threshold,omitempty" jsonschema:"fused probability above which the screen is positive"`
}

// config applies the override to base. It returns nil when nothing was
// overridden.
func (o weightsOverride) config(base domain.FusionConfig) (*domain.FusionConfig, error) {
	if len(o.Weights) == 0 && o.PositiveThreshold == nil {
		return nil, nil
	}
	cfg := base.Clone()
	if len(o.Weights) > 0 {
		cfg.BaseWeights = make(map[domain.Modality]float64, len(o.Weights))
		for name, w := range o.Weights {
			m, err := domain.ParseModality(name)
			if err != nil {
				return nil, domain.NewConfigurationError("", err.Error())
			}
			cfg.BaseWeights[m] = w
		}
	}
	if o.PositiveThreshold != nil {
		cfg.PositiveThreshold = *o.PositiveThreshold
	}
	return &cfg, nil
}

type computeFusionInput struct {
	Results           []modalityResultInput `json:"results" jsonschema:"one result per available modality"`
	Strategy          string                `json:"strategy,omitempty" jsonschema:"confidence_weighted (default), weighted_average, simple_average or majority_vote"`
	Weights           map[string]float64    `json:"weights,omitempty" jsonschema:"base weight per modality; all three modalities, summing to 1"`
	PositiveThreshold *float64              `json:"positive_threshold,omitempty" jsonschema:"fused probability above which the screen is positive"`
}

type assessPatientInput struct {
	RequestID string                 `json:"request_id,omitempty" jsonschema:"caller correlation id"`
	Patient   domain.PatientMetadata `json:"patient,omitempty" jsonschema:"optional patient metadata reproduced in the report"`
	Results   []modalityResultInput  `json:"results" jsonschema:"one result per available modality"`
}

type assessPatientOutput struct {
	AssessmentID string                   `json:"assessment_id"`
	CreatedAt    string                   `json:"created_at"`
	Outcome      domain.FusionOutcomeView `json:"outcome"`
}

type assessmentRef struct {
	AssessmentID string `json:"assessment_id" jsonschema:"id returned by assess_patient"`
}

type generateReportOutput struct {
	Filename string `json:"filename"`
	Report   string `json:"report"`
}

type submitFeedbackInput struct {
	AssessmentID   string `json:"assessment_id" jsonschema:"id returned by assess_patient"`
	ConfirmedLabel string `json:"confirmed_label" jsonschema:"clinician-confirmed diagnosis: POSITIVE or NEGATIVE"`
	Clinician      string `json:"clinician,omitempty" jsonschema:"who confirmed the diagnosis"`
	Notes          string `json:"notes,omitempty"`
}

type feedbackOutput struct {
	AssessmentID        string            `json:"assessment_id"`
	PatientID           string            `json:"patient_id,omitempty"`
	PredictedLabel      domain.Prediction `json:"predicted_label"`
	ConfirmedLabel      domain.Prediction `json:"confirmed_label"`
	Agreed              bool              `json:"agreed"`
	ProbabilityPositive float64           `json:"probability_positive"`
	Clinician           string            `json:"clinician,omitempty"`
	Notes               string            `json:"notes,omitempty"`
	UpdatedAt           string            `json:"updated_at"`
}

func newFeedbackOutput(fb *feedback.Feedback) feedbackOutput {
	return feedbackOutput{
		AssessmentID:        fb.AssessmentID,
		PatientID:           fb.PatientID,
		PredictedLabel:      fb.PredictedLabel,
		ConfirmedLabel:      fb.ConfirmedLabel,
		Agreed:              fb.Agreed,
		ProbabilityPositive: fb.ProbabilityPositive,
		Clinician:           fb.Clinician,
		Notes:               fb.Notes,
		UpdatedAt:           fb.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type listFeedbackInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"page size, default 20, at most 100"`
	Offset int `json:"offset,omitempty"`
}

type listFeedbackOutput struct {
	Items []feedbackOutput `json:"items"`
	Total int64            `json:"total"`
}

type optimizeWeightsInput struct {
	Trials int    `json:"trials,omitempty" jsonschema:"random configurations to try, default 100"`
	Seed   uint64 `json:"seed,omitempty" jsonschema:"random seed; the same seed and feedback give the same result"`
	Apply  bool   `json:"apply,omitempty" jsonschema:"put the best configuration into force if it beats the active one"`
}

type optimizeWeightsOutput struct {
	BestWeights       map[domain.Modality]float64 `json:"best_weights"`
	PositiveThreshold float64                     `json:"positive_threshold"`
	Best              fusion.Metrics              `json:"best_metrics"`
	Baseline          fusion.Metrics              `json:"baseline_metrics"`
	Trials            int                         `json:"trials"`
	Cases             int                         `json:"cases"`
	Improved          bool                        `json:"improved"`
	Applied           bool                        `json:"applied"`
}

type fusionConfigOutput struct {
	Strategy          string                      `json:"strategy"`
	BaseWeights       map[domain.Modality]float64 `json:"base_weights"`
	PositiveThreshold float64                     `json:"positive_threshold"`
	Strategies        []string                    `json:"strategies"`
}

type exportFeedbackInput struct {
	Filename string `json:"filename,omitempty" jsonschema:"file name inside the export directory; defaults to a timestamped name"`
}

type exportFeedbackOutput struct {
	Path string `json:"path"`
}

type importFeedbackInput struct {
	Path string `json:"path" jsonschema:"JSON export to load; relative paths resolve inside the export directory"`
}

type importFeedbackOutput struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type emptyInput struct{}

// --- Handlers ---

func (s *Server) toolLog(tool string) *logrus.Entry {
	return s.logger.WithField("tool", tool)
}

// fail logs a failed tool call. The returned error becomes the tool result.
func (s *Server) fail(tool string, err error) error {
	s.toolLog(tool).WithFields(logrus.Fields{
		"error":      err.Error(),
		"error_code": domain.ErrorCode(err),
	}).Warn("Tool call failed")
	return err
}

func (s *Server) handleComputeFusion(ctx context.Context, _ *sdkmcp.CallToolRequest, in computeFusionInput) (*sdkmcp.CallToolResult, domain.FusionOutcomeView, error) {
	s.toolLog("compute_fusion").Debug("Tool invoked")

	results, err := toResults(in.Results)
	if err != nil {
		return nil, domain.FusionOutcomeView{}, s.fail("compute_fusion", err)
	}
	override := weightsOverride{Weights: in.Weights, PositiveThreshold: in.PositiveThreshold}
	cfg, err := override.config(s.service.FusionConfig())
	if err != nil {
		return nil, domain.FusionOutcomeView{}, s.fail("compute_fusion", err)
	}

	outcome, err := s.service.Fuse(ctx, service.FuseRequest{Results: results, Config: cfg, Strategy: in.Strategy})
	if err != nil {
		return nil, domain.FusionOutcomeView{}, s.fail("compute_fusion", err)
	}
	return nil, outcome.View(), nil
}

func (s *Server) handleAssessPatient(ctx context.Context, _ *sdkmcp.CallToolRequest, in assessPatientInput) (*sdkmcp.CallToolResult, assessPatientOutput, error) {
	s.toolLog("assess_patient").Debug("Tool invoked")

	results, err := toResults(in.Results)
	if err != nil {
		return nil, assessPatientOutput{}, s.fail("assess_patient", err)
	}
	record, err := s.service.Assess(ctx, service.AssessRequest{
		RequestID: in.RequestID,
		Patient:   in.Patient,
		Results:   results,
	})
	if err != nil {
		return nil, assessPatientOutput{}, s.fail("assess_patient", err)
	}
	return nil, assessPatientOutput{
		AssessmentID: record.ID,
		CreatedAt:    record.CreatedAt.UTC().Format(time.RFC3339),
		Outcome:      record.Outcome,
	}, nil
}

func (s *Server) handleGenerateReport(ctx context.Context, _ *sdkmcp.CallToolRequest, in assessmentRef) (*sdkmcp.CallToolResult, generateReportOutput, error) {
	s.toolLog("generate_report").WithField("assessment_id", in.AssessmentID).Debug("Tool invoked")

	text, filename, err := s.service.RenderReport(ctx, in.AssessmentID)
	if err != nil {
		return nil, generateReportOutput{}, s.fail("generate_report", err)
	}
	return nil, generateReportOutput{Filename: filename, Report: text}, nil
}

func (s *Server) handleSubmitFeedback(ctx context.Context, _ *sdkmcp.CallToolRequest, in submitFeedbackInput) (*sdkmcp.CallToolResult, feedbackOutput, error) {
	s.toolLog("submit_feedback").WithField("assessment_id", in.AssessmentID).Debug("Tool invoked")

	label, err := domain.ParsePrediction(in.ConfirmedLabel)
	if err != nil {
		return nil, feedbackOutput{}, s.fail("submit_feedback", err)
	}
	fb, err := s.service.SubmitFeedback(ctx, service.FeedbackRequest{
		AssessmentID:   in.AssessmentID,
		ConfirmedLabel: label,
		Clinician:      in.Clinician,
		Notes:          in.Notes,
	})
	if err != nil {
		return nil, feedbackOutput{}, s.fail("submit_feedback", err)
	}
	return nil, newFeedbackOutput(fb), nil
}

func (s *Server) handleListFeedback(ctx context.Context, _ *sdkmcp.CallToolRequest, in listFeedbackInput) (*sdkmcp.CallToolResult, listFeedbackOutput, error) {
	s.toolLog("list_feedback").Debug("Tool invoked")

	entries, total, err := s.service.ListFeedback(ctx, in.Limit, in.Offset)
	if err != nil {
		return nil, listFeedbackOutput{}, s.fail("list_feedback", err)
	}
	out := listFeedbackOutput{Items: make([]feedbackOutput, 0, len(entries)), Total: total}
	for _, fb := range entries {
		out.Items = append(out.Items, newFeedbackOutput(fb))
	}
	return nil, out, nil
}

func (s *Server) handleEvaluateWeights(ctx context.Context, _ *sdkmcp.CallToolRequest, in weightsOverride) (*sdkmcp.CallToolResult, fusion.Metrics, error) {
	s.toolLog("evaluate_weights").Debug("Tool invoked")

	cfg, err := in.config(s.service.FusionConfig())
	if err != nil {
		return nil, fusion.Metrics{}, s.fail("evaluate_weights", err)
	}
	m, err := s.service.EvaluateWeights(ctx, cfg)
	if err != nil {
		return nil, fusion.Metrics{}, s.fail("evaluate_weights", err)
	}
	return nil, m, nil
}

func (s *Server) handleOptimizeWeights(ctx context.Context, _ *sdkmcp.CallToolRequest, in optimizeWeightsInput) (*sdkmcp.CallToolResult, optimizeWeightsOutput, error) {
	s.toolLog("optimize_weights").Debug("Tool invoked")

	res, err := s.service.OptimizeWeights(ctx, service.OptimizeRequest{
		Trials: in.Trials,
		Seed:   in.Seed,
		Apply:  in.Apply,
	})
	if err != nil {
		return nil, optimizeWeightsOutput{}, s.fail("optimize_weights", err)
	}
	return nil, optimizeWeightsOutput{
		BestWeights:       res.BestConfig.BaseWeights,
		PositiveThreshold: res.BestConfig.PositiveThreshold,
		Best:              res.Best,
		Baseline:          res.Baseline,
		Trials:            res.Trials,
		Cases:             res.Cases,
		Improved:          res.Improved,
		Applied:           res.Applied,
	}, nil
}

func (s *Server) handleGetFusionConfig(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, fusionConfigOutput, error) {
	engine := s.service.Engine()
	cfg := engine.Config()

	strategies := make([]string, 0, len(fusion.Strategies()))
	for _, st := range fusion.Strategies() {
		strategies = append(strategies, st.String())
	}
	return nil, fusionConfigOutput{
		Strategy:          engine.Strategy().String(),
		BaseWeights:       cfg.BaseWeights,
		PositiveThreshold: cfg.PositiveThreshold,
		Strategies:        strategies,
	}, nil
}

func (s *Server) handleExportFeedback(ctx context.Context, _ *sdkmcp.CallToolRequest, in exportFeedbackInput) (*sdkmcp.CallToolResult, exportFeedbackOutput, error) {
	s.toolLog("export_feedback").Debug("Tool invoked")

	if s.exportDir == "" {
		return nil, exportFeedbackOutput{}, s.fail("export_feedback", domain.NewConfigurationError("", "export directory not configured"))
	}
	name := in.Filename
	if name == "" {
		name = fmt.Sprintf("feedback-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	if filepath.Base(name) != name {
		return nil, exportFeedbackOutput{}, s.fail("export_feedback", domain.NewFieldError("", "filename", "must be a plain file name", name))
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return nil, exportFeedbackOutput{}, s.fail("export_feedback", err)
	}

	path := filepath.Join(s.exportDir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, exportFeedbackOutput{}, s.fail("export_feedback", err)
	}
	defer f.Close()

	if err := s.service.ExportFeedback(ctx, f); err != nil {
		return nil, exportFeedbackOutput{}, s.fail("export_feedback", err)
	}
	s.toolLog("export_feedback").WithField("path", path).Info("Feedback exported")
	return nil, exportFeedbackOutput{Path: path}, nil
}

func (s *Server) handleImportFeedback(ctx context.Context, _ *sdkmcp.CallToolRequest, in importFeedbackInput) (*sdkmcp.CallToolResult, importFeedbackOutput, error) {
	s.toolLog("import_feedback").Debug("Tool invoked")

	if in.Path == "" {
		return nil, importFeedbackOutput{}, s.fail("import_feedback", domain.NewFieldError("", "path", "is required", nil))
	}
	path := in.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.exportDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, importFeedbackOutput{}, s.fail("import_feedback", domain.NewFieldError("", "path", err.Error(), in.Path))
	}
	defer f.Close()

	imported, skipped, err := s.service.ImportFeedback(ctx, f)
	if err != nil {
		return nil, importFeedbackOutput{}, s.fail("import_feedback", err)
	}
	return nil, importFeedbackOutput{Imported: imported, Skipped: skipped}, nil
}
