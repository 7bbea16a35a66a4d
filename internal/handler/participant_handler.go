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

// ParticipantHandler exposes participant endpoints.
type ParticipantHandler struct {
	service *service.ParticipantService
}

// NewParticipantHandler constructs a participant handler.
func NewParticipantHandler(svc *service.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{service: svc}
}

// List godoc
// @Summary List participants
// @Tags Participants
// @Produce json
// @Param type query string false "Filter by type (STUDENT or TEACHER)"
// @Param search query string false "Search by name or national ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	var filter models.ParticipantFilter
	if pType := c.Query("type"); pType != "" {
		t := models.ParticipantType(pType)
		filter.Type = &t
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	participants, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participants, pagination)
}

// Get godoc
// @Summary Get participant
// @Tags Participants
// @Produce json
// @Param id path string true "Participant ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [get]
func (h *ParticipantHandler) Get(c *gin.Context) {
	participant, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Create godoc
// @Summary Register participant
// @Tags Participants
// @Accept json
// @Produce json
// @Param payload body service.CreateParticipantRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /participants [post]
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req service.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	participant, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

// Update godoc
// @Summary Update participant
// @Tags Participants
// @Accept json
// @Produce json
// @Param id path string true "Participant ID"
// @Param payload body service.UpdateParticipantRequest true "Participant payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /participants/{id} [put]
func (h *ParticipantHandler) Update(c *gin.Context) {
	var req service.UpdateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	participant, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Delete godoc
// @Summary Delete participant
// @Tags Participants
// @Produce json
// @Param id path string true "Participant ID"
// @Success 204
// @Security BearerAuth
// @Router /participants/{id} [delete]
func (h *ParticipantHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
