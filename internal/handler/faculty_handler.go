package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atcms-project/atcms-api/internal/service"
	"github.com/atcms-project/atcms-api/pkg/response"
)

// FacultyHandler exposes faculty reference data.
type FacultyHandler struct {
	service *service.FacultyService
}

// NewFacultyHandler creates a new handler.
func NewFacultyHandler(svc *service.FacultyService) *FacultyHandler {
	return &FacultyHandler{service: svc}
}

// List godoc
// @Summary List faculties
// @Description Returns every faculty with its programs
// @Tags Faculties
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /faculties [get]
func (h *FacultyHandler) List(c *gin.Context) {
	faculties, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculties, nil)
}

// Get godoc
// @Summary Get faculty
// @Description Returns one faculty by code
// @Tags Faculties
// @Produce json
// @Param code path string true "Faculty code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /faculties/{code} [get]
func (h *FacultyHandler) Get(c *gin.Context) {
	faculty, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, faculty, nil)
}
