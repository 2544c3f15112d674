package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type checkRequest struct {
	Roll rollField `json:"roll"`
}

type studentSummary struct {
	Name         string    `json:"name"`
	Roll         string    `json:"roll"`
	RegisteredAt time.Time `json:"registered_at"`
}

type checkResponse struct {
	Success bool            `json:"success"`
	Exists  bool            `json:"exists"`
	Student *studentSummary `json:"student,omitempty"`
}

// RegistrationHandler answers whether a roll is enrolled.
type RegistrationHandler struct {
	deps Dependencies
}

// NewRegistrationHandler creates a new registration handler.
func NewRegistrationHandler(deps Dependencies) *RegistrationHandler {
	return &RegistrationHandler{deps: deps}
}

// HandleCheck handles POST /check-registration.
func (h *RegistrationHandler) HandleCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_json", fmt.Errorf("%w: request must be JSON: %v", ErrBadRequest, err))
		return
	}
	reg, err := h.deps.CheckRegistration(c.Request.Context(), string(req.Roll))
	if err != nil {
		status, code := statusFor(err)
		writeError(c, status, code, err)
		return
	}
	resp := checkResponse{Success: true, Exists: reg.Exists}
	if reg.Exists {
		resp.Student = &studentSummary{Name: reg.Name, Roll: reg.Roll, RegisteredAt: reg.RegisteredAt}
	}
	c.JSON(http.StatusOK, resp)
}
