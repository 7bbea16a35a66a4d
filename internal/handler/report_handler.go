package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/expoferia/expoferia-api/internal/models"
	"github.com/expoferia/expoferia-api/internal/service"
	"github.com/expoferia/expoferia-api/pkg/response"
)

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

func projectReportFilterFromQuery(c *gin.Context) models.ProjectReportFilter {
	return models.ProjectReportFilter{
		PeriodID:  c.Query("periodId"),
		SubjectID: c.Query("subjectId"),
		StudentID: c.Query("studentId"),
		TeacherID: c.Query("teacherId"),
	}
}

func participantReportFilterFromQuery(c *gin.Context) models.ParticipantReportFilter {
	filter := models.ParticipantReportFilter{PeriodID: c.Query("periodId")}
	if pType := c.Query("type"); pType != "" {
		t := models.ParticipantType(pType)
		filter.Type = &t
	}
	return filter
}

// Projects godoc
// @Summary Project report
// @Description Projects matching the filters, each with its full roster
// @Tags Reports
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param subjectId query string false "Filter by subject"
// @Param studentId query string false "Filter by participating student"
// @Param teacherId query string false "Filter by participating teacher"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/projects [get]
func (h *ReportHandler) Projects(c *gin.Context) {
	rows, err := h.service.ProjectReport(c.Request.Context(), projectReportFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows)})
}

// Participants godoc
// @Summary Participant report
// @Description Participants with their aggregated project names
// @Tags Reports
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param type query string false "Filter by type (STUDENT or TEACHER)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/participants [get]
func (h *ReportHandler) Participants(c *gin.Context) {
	rows, err := h.service.ParticipantReport(c.Request.Context(), participantReportFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows)})
}
