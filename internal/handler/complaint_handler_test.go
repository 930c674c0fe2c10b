package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atcms-project/atcms-api/internal/middleware"
	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/internal/service"
)

func studentClaims() *models.JWTClaims {
	return &models.JWTClaims{
		UserID:    "user-1",
		Name:      "Jane Doe",
		Role:      models.RoleStudent,
		Matricule: "UB20S001",
		Faculty:   "COT",
		Program:   "CEC",
	}
}

func TestComplaintHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewComplaintHandler(nil, nil, 0)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.CreateComplaintRequest{Subject: "CA marks missing"})
	req, _ := http.NewRequest(http.MethodPost, "/complaints", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestComplaintHandlerCreateRejectsInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewComplaintHandler(nil, nil, 0)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/complaints", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplaintHandlerAddCommentRequiresText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewComplaintHandler(nil, nil, 0)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/complaints/c-1/comments", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "c-1"}}
	c.Set(middleware.ContextUserKey, studentClaims())

	handler.AddComment(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestComplaintHandlerBulkResolveRejectsInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewComplaintHandler(nil, nil, 0)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/complaints/bulk-resolve", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.BulkResolve(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActorFromContextProjectsClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, studentClaims())

	actor, ok := actorFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "user-1", actor.ID)
	assert.Equal(t, models.RoleStudent, actor.Role)
	assert.Equal(t, "CEC", actor.Program)
	assert.Equal(t, "UB20S001", actor.Matricule)
}
