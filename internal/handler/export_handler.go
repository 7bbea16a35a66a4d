package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/expoferia/expoferia-api/internal/models"
	"github.com/expoferia/expoferia-api/internal/service"
	appErrors "github.com/expoferia/expoferia-api/pkg/errors"
	"github.com/expoferia/expoferia-api/pkg/response"
)

// ExportHandler exposes report export and document download endpoints.
type ExportHandler struct {
	exports      *service.ExportService
	certificates *service.CertificateService
	mailing      *service.MailingService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(exports *service.ExportService, certificates *service.CertificateService, mailing *service.MailingService) *ExportHandler {
	return &ExportHandler{exports: exports, certificates: certificates, mailing: mailing}
}

// ProjectReport godoc
// @Summary Export project report
// @Tags Exports
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param subjectId query string false "Filter by subject"
// @Param studentId query string false "Filter by participating student"
// @Param teacherId query string false "Filter by participating teacher"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/projects/export [get]
func (h *ExportHandler) ProjectReport(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.ExportProjectReport(c.Request.Context(), projectReportFilterFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ParticipantReport godoc
// @Summary Export participant report
// @Tags Exports
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param type query string false "Filter by type (STUDENT or TEACHER)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/participants/export [get]
func (h *ExportHandler) ParticipantReport(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.ExportParticipantReport(c.Request.Context(), participantReportFilterFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Certificates godoc
// @Summary Generate project certificates
// @Description Render one participation certificate per roster member
// @Tags Exports
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /projects/{id}/certificates [post]
func (h *ExportHandler) Certificates(c *gin.Context) {
	result, err := h.certificates.GenerateForProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func mailingFilterFromQuery(c *gin.Context) models.MailingFilter {
	filter := models.MailingFilter{PeriodID: c.Query("periodId")}
	if pType := c.Query("type"); pType != "" {
		t := models.ParticipantType(pType)
		filter.Type = &t
	}
	return filter
}

// MailingList godoc
// @Summary Mailing list
// @Description De-duplicated addresses of users and participants
// @Tags Exports
// @Produce json
// @Param periodId query string false "Limit participants to a period's report"
// @Param type query string false "Limit participants by type (STUDENT or TEACHER)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /mailing-list [get]
func (h *ExportHandler) MailingList(c *gin.Context) {
	list, err := h.mailing.Build(c.Request.Context(), mailingFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// MailingListCSV godoc
// @Summary Mailing list CSV
// @Tags Exports
// @Produce text/csv
// @Param periodId query string false "Limit participants to a period's report"
// @Param type query string false "Limit participants by type (STUDENT or TEACHER)"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /mailing-list/export [get]
func (h *ExportHandler) MailingListCSV(c *gin.Context) {
	payload, err := h.mailing.ExportCSV(c.Request.Context(), mailingFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="mailing_list.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

// Download godoc
// @Summary Download generated document
// @Description Stream a stored export or certificate referenced by a signed token
// @Tags Exports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	relPath, _, err := h.exports.ParseToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat document"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(relPath)+`"`)
	c.DataFromReader(http.StatusOK, stat.Size(), "application/octet-stream", file, nil)
}
