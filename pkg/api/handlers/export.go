package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/models"
)

// ExportHandler streams the performance workbook.
type ExportHandler struct {
	exports *export.Service
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exports *export.Service, m *metrics.Metrics, log logger.Logger) *ExportHandler {
	return &ExportHandler{exports: exports, metrics: m, log: log}
}

// Download writes the finalized-leads spreadsheet as an attachment.
func (h *ExportHandler) Download(c echo.Context) error {
	var buf bytes.Buffer
	n, err := h.exports.WritePerformance(c.Request().Context(), &buf)
	if err != nil {
		h.log.Error("export failed", "err", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "export_error",
			Message: "Could not build the spreadsheet. Please try again later.",
		})
	}
	h.metrics.ExportsCreated.Inc()
	h.log.Info("export generated", "rows", n)

	name := fmt.Sprintf("desempenho_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, name))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
