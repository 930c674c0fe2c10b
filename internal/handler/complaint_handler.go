package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/internal/service"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
	"github.com/atcms-project/atcms-api/pkg/response"
	"github.com/atcms-project/atcms-api/pkg/storage"
)

// ComplaintHandler wires HTTP endpoints to the complaint workflow.
type ComplaintHandler struct {
	service     *service.ComplaintService
	uploads     *storage.LocalStorage
	maxFileSize int64
}

// NewComplaintHandler creates a new handler.
func NewComplaintHandler(svc *service.ComplaintService, uploads *storage.LocalStorage, maxFileSize int64) *ComplaintHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	return &ComplaintHandler{service: svc, uploads: uploads, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Submit a complaint
// @Description Students file a new complaint; the program is taken from the account
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateComplaintRequest true "Complaint payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid complaint payload"))
		return
	}

	complaint, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, complaint)
}

// List godoc
// @Summary List complaints
// @Description Returns complaints within the caller's scope
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by complaint type"
// @Param search query string false "Search subject, course code or matricule"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /complaints [get]
func (h *ComplaintHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ComplaintFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ComplaintStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("type"); raw != "" {
		complaintType := models.ComplaintType(raw)
		filter.ComplaintType = &complaintType
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	complaints, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaints, pagination)
}

// ListAssigned godoc
// @Summary Admin escalation queue
// @Description Complaints that are escalated or assigned to the calling admin
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints/assigned [get]
func (h *ComplaintHandler) ListAssigned(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	complaints, err := h.service.ListAssigned(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaints, nil)
}

// Get godoc
// @Summary Get complaint
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id} [get]
func (h *ComplaintHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	complaint, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// UpdateStatus godoc
// @Summary Update complaint status
// @Description Staff transition a complaint; every transition appends to the history
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body service.UpdateComplaintStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/status [patch]
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateComplaintStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	complaint, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// AddComment godoc
// @Summary Comment on a complaint
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param payload body map[string]string true "Comment text"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/comments [post]
func (h *ComplaintHandler) AddComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "comment text required"))
		return
	}

	complaint, err := h.service.AddComment(c.Request.Context(), actor, c.Param("id"), payload.Text)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// Escalate godoc
// @Summary Escalate a complaint
// @Description Reassigns the complaint to the admin, with optional supporting files (multipart)
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param instructions formData string true "Escalation instructions"
// @Param files formData file false "Supporting files"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /complaints/{id}/escalate [post]
func (h *ComplaintHandler) Escalate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	files, err := h.saveUploads(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.EscalateComplaintRequest{
		Instructions: c.PostForm("instructions"),
		Files:        files,
	}
	complaint, err := h.service.Escalate(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// Resolve godoc
// @Summary Resolve a complaint
// @Description Closes the complaint with a resolution note and optional files (multipart)
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param resolution formData string true "Resolution note"
// @Param files formData file false "Supporting files"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/resolve [post]
func (h *ComplaintHandler) Resolve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	files, err := h.saveUploads(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.ResolveComplaintRequest{
		Resolution: c.PostForm("resolution"),
		Files:      files,
	}
	complaint, err := h.service.Resolve(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// BulkResolve godoc
// @Summary Resolve complaints in bulk
// @Description Resolves every listed complaint atomically; unknown IDs are skipped
// @Tags Complaints
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkResolveRequest true "IDs and resolution"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints/bulk-resolve [post]
func (h *ComplaintHandler) BulkResolve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BulkResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk resolution payload"))
		return
	}

	resolved, err := h.service.BulkResolve(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"modifiedCount": resolved}, nil)
}

// UploadFiles godoc
// @Summary Attach files to a complaint
// @Tags Complaints
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Param files formData file true "Attachments"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /complaints/{id}/files [post]
func (h *ComplaintHandler) UploadFiles(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	files, err := h.saveUploads(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	complaint, err := h.service.AttachFiles(c.Request.Context(), actor, c.Param("id"), files)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, complaint, nil)
}

// Analytics godoc
// @Summary Complaint analytics
// @Description Aggregated counts within the caller's scope
// @Tags Complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /complaints/analytics [get]
func (h *ComplaintHandler) Analytics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	analytics, err := h.service.Analytics(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, analytics, nil)
}

// saveUploads persists every multipart file under a generated name and
// returns the stored references.
func (h *ComplaintHandler) saveUploads(c *gin.Context) ([]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}

	var saved []string
	for _, header := range form.File["files"] {
		if header.Size > h.maxFileSize {
			h.cleanup(saved)
			return nil, appErrors.Validation("file too large",
				appErrors.FieldError{Field: "files", Message: fmt.Sprintf("%s exceeds the %d byte limit", header.Filename, h.maxFileSize)})
		}
		src, err := header.Open()
		if err != nil {
			h.cleanup(saved)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
		}
		name := uuid.NewString() + filepath.Ext(header.Filename)
		if _, err := h.uploads.SaveStream(name, src); err != nil {
			src.Close() //nolint:errcheck
			h.cleanup(saved)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
		}
		src.Close() //nolint:errcheck
		saved = append(saved, name)
	}
	return saved, nil
}

func (h *ComplaintHandler) cleanup(files []string) {
	if len(files) == 0 {
		return
	}
	_ = h.uploads.DeleteAll(files)
}
