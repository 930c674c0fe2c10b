package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/internal/service"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
	"github.com/atcms-project/atcms-api/pkg/response"
)

// TranscriptHandler wires HTTP endpoints to the transcript workflow.
type TranscriptHandler struct {
	service *service.TranscriptService
}

// NewTranscriptHandler creates a new handler.
func NewTranscriptHandler(svc *service.TranscriptService) *TranscriptHandler {
	return &TranscriptHandler{service: svc}
}

// Create godoc
// @Summary Request a transcript
// @Description Students request a transcript; the fee is derived from the tier and charged before the request is recorded
// @Tags Transcripts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTranscriptRequest true "Transcript request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /transcripts [post]
func (h *TranscriptHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transcript payload"))
		return
	}

	request, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, request)
}

// List godoc
// @Summary List transcript requests
// @Description Returns transcript requests within the caller's scope
// @Tags Transcripts
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param mode query string false "Filter by processing tier"
// @Param search query string false "Search name or matricule"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transcripts [get]
func (h *TranscriptHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.TranscriptFilter{
		Matricule: c.Query("matricule"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.TranscriptStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("mode"); raw != "" {
		mode := models.ModeOfTreatment(raw)
		filter.Mode = &mode
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	requests, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get transcript request
// @Tags Transcripts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transcript request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transcripts/{id} [get]
func (h *TranscriptHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// ByMatricule godoc
// @Summary Transcript requests for a student
// @Description Staff lookup of every request filed under a matricule
// @Tags Transcripts
// @Produce json
// @Security BearerAuth
// @Param matricule path string true "Student matricule"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /transcripts/student/{matricule} [get]
func (h *TranscriptHandler) ByMatricule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.service.ListByMatricule(c.Request.Context(), actor, c.Param("matricule"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, nil)
}

// UpdateStatus godoc
// @Summary Update transcript status
// @Description Admin transition; completing a request generates the PDF and notifies the student
// @Tags Transcripts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transcript request ID"
// @Param payload body service.UpdateTranscriptStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transcripts/{id}/status [patch]
func (h *TranscriptHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateTranscriptStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	request, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// Download godoc
// @Summary Download transcript PDF
// @Description Serves the generated document for a completed request
// @Tags Transcripts
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Transcript request ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transcripts/{id}/download [get]
func (h *TranscriptHandler) Download(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	path, err := h.service.Download(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.FileAttachment(path, c.Param("id")+".pdf")
}

// Statistics godoc
// @Summary Transcript statistics
// @Description Aggregated request counts by status and processing tier
// @Tags Transcripts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /transcripts/statistics [get]
func (h *TranscriptHandler) Statistics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.service.Statistics(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}
