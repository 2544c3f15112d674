package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okian/rollcall/internal/domain/model"
)

type reportResponse struct {
	Success bool                    `json:"success"`
	Records []model.AttendanceEvent `json:"records"`
}

// ReportHandler serves today's attendance.
type ReportHandler struct {
	deps Dependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps Dependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleReport handles GET /attendance_report.
func (h *ReportHandler) HandleReport(c *gin.Context) {
	events, err := h.deps.Today(c.Request.Context())
	if err != nil {
		status, code := statusFor(err)
		writeError(c, status, code, err)
		return
	}
	if events == nil {
		events = []model.AttendanceEvent{}
	}
	c.JSON(http.StatusOK, reportResponse{Success: true, Records: events})
}
