package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/expoferia/expoferia-api/internal/models"
	"github.com/expoferia/expoferia-api/internal/service"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
	"github.com/expoferia/expoferia-api/pkg/response"
)

// ProjectHandler exposes project and association endpoints.
type ProjectHandler struct {
	service *service.ProjectService
}

// NewProjectHandler constructs a project handler.
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: svc}
}

// replaceParticipantsRequest carries the full target association set.
type replaceParticipantsRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param subjectId query string false "Filter by subject"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	var filter models.ProjectFilter
	filter.PeriodID = c.Query("periodId")
	filter.SubjectID = c.Query("subjectId")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	projects, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// Get godoc
// @Summary Get project with roster
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Create godoc
// @Summary Register project
// @Description Register a project with its initial participant set
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Update godoc
// @Summary Update project
// @Description Update base fields and optionally reconcile the participant set
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.UpdateProjectRequest true "Project payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	project, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Roster godoc
// @Summary Get project roster
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/participants [get]
func (h *ProjectHandler) Roster(c *gin.Context) {
	roster, err := h.service.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// AddParticipants godoc
// @Summary Add participants to project
// @Description Link participants to the project; existing links are skipped
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.ModifyParticipantsRequest true "Participant IDs"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/participants [post]
func (h *ProjectHandler) AddParticipants(c *gin.Context) {
	var req service.ModifyParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	diff, err := h.service.AddParticipants(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diff, nil)
}

// RemoveParticipants godoc
// @Summary Remove participants from project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.ModifyParticipantsRequest true "Participant IDs"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/participants [delete]
func (h *ProjectHandler) RemoveParticipants(c *gin.Context) {
	var req service.ModifyParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	diff, err := h.service.RemoveParticipants(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diff, nil)
}

// ReplaceParticipants godoc
// @Summary Replace project participant set
// @Description Reconcile stored associations against the provided target set
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body replaceParticipantsRequest true "Target participant IDs"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/participants [put]
func (h *ProjectHandler) ReplaceParticipants(c *gin.Context) {
	var req replaceParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	diff, err := h.service.ReplaceParticipants(c.Request.Context(), c.Param("id"), req.ParticipantIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diff, nil)
}

// Delete godoc
// @Summary Delete project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 204
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
