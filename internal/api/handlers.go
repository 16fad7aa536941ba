package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/fusion"
	"github.com/neuroscreen-fusion-server/internal/middleware"
	"github.com/neuroscreen-fusion-server/internal/service"
)

// assessmentRequest creates an assessment either from ready modality results
// or from raw captures that are first sent to the analyzers.
type assessmentRequest struct {
	RequestID string                                    `json:"request_id"`
	Patient   domain.PatientMetadata                    `json:"patient"`
	Results   []domain.ModalityResult                   `json:"results"`
	Inputs    map[domain.Modality]domain.AnalyzerInput `json:"inputs"`
}

type feedbackBody struct {
	ConfirmedLabel domain.Prediction `json:"confirmed_label"`
	Clinician      string            `json:"clinician"`
	Notes          string            `json:"notes"`
}

type page struct {
	Items  any   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func (s *Server) handleFuse(c *gin.Context) {
	var req service.FuseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	outcome, err := s.service.Fuse(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome.View())
}

func (s *Server) handleCreateAssessment(c *gin.Context) {
	var req assessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	if len(req.Results) > 0 && len(req.Inputs) > 0 {
		s.respondError(c, domain.NewInvalidInputError("send either results or inputs, not both"))
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetString(middleware.CorrelationIDKey)
	}

	var (
		record *domain.AssessmentRecord
		err    error
	)
	if len(req.Inputs) > 0 {
		record, err = s.service.CollectAndAssess(c.Request.Context(), service.AnalysisRequest{
			RequestID: req.RequestID,
			Patient:   req.Patient,
			Inputs:    req.Inputs,
		})
	} else {
		record, err = s.service.Assess(c.Request.Context(), service.AssessRequest{
			RequestID: req.RequestID,
			Patient:   req.Patient,
			Results:   req.Results,
		})
	}
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Location", "/api/v1/assessments/"+record.ID)
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListAssessments(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	records, total, err := s.service.ListAssessments(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	items := make([]domain.AssessmentSummary, 0, len(records))
	for _, r := range records {
		items = append(items, r.Summary())
	}
	c.JSON(http.StatusOK, page{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	record, err := s.service.GetAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleReport(c *gin.Context) {
	text, filename, err := s.service.RenderReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	var body feedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	fb, err := s.service.SubmitFeedback(c.Request.Context(), service.FeedbackRequest{
		AssessmentID:   c.Param("id"),
		ConfirmedLabel: body.ConfirmedLabel,
		Clinician:      body.Clinician,
		Notes:          body.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	entries, total, err := s.service.ListFeedback(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page{Items: entries, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleEvaluateWeights(c *gin.Context) {
	var cfg *domain.FusionConfig
	if c.Request.ContentLength != 0 {
		var body domain.FusionConfig
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			s.badRequest(c, err)
			return
		} else if err == nil {
			cfg = &body
		}
	}

	metrics, err := s.service.EvaluateWeights(c.Request.Context(), cfg)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) handleOptimizeWeights(c *gin.Context) {
	var req service.OptimizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.badRequest(c, err)
			return
		}
	}

	result, err := s.service.OptimizeWeights(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetFusionConfig(c *gin.Context) {
	engine := s.service.Engine()
	c.JSON(http.StatusOK, gin.H{
		"strategy":   engine.Strategy(),
		"config":     engine.Config(),
		"strategies": fusion.Strategies(),
	})
}

func pagination(c *gin.Context) (int, int, error) {
	limit, err := queryInt(c, "limit", service.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > service.MaxPageSize {
		return 0, 0, fmt.Errorf("limit must be between 1 and %d", service.MaxPageSize)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset cannot be negative")
	}
	return limit, offset, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
