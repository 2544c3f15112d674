package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/okian/rollcall/internal/adapters/imagesrc"
	service "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/domain/model"
)

// rollField accepts a roll sent as a JSON string or number.
type rollField string

func (r *rollField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = rollField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("roll must be a string or a number")
	}
	*r = rollField(n.String())
	return nil
}

// registerRequest mirrors the OpenAPI schema for POST /register.
type registerRequest struct {
	Name  string    `json:"name"`
	Roll  rollField `json:"roll"`
	Image string    `json:"image"`
}

type registerResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Roll    string `json:"roll,omitempty"`
	Name    string `json:"student_name,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RegisterHandler handles enrollment requests.
type RegisterHandler struct {
	deps Dependencies
}

// NewRegisterHandler creates a new register handler.
func NewRegisterHandler(deps Dependencies) *RegisterHandler {
	return &RegisterHandler{deps: deps}
}

// HandleRegister handles POST /register.
func (h *RegisterHandler) HandleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_json", fmt.Errorf("%w: request must be JSON: %v", ErrBadRequest, err))
		return
	}

	var image []byte
	if strings.TrimSpace(req.Image) != "" {
		data, err := imagesrc.DecodeDataURL(req.Image)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_image", fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		image = data
	}

	res, err := h.deps.Enroll(c.Request.Context(), service.EnrollRequest{
		Roll:  string(req.Roll),
		Name:  req.Name,
		Image: image,
	})
	if err != nil {
		status, code := statusFor(err)
		writeError(c, status, code, err)
		return
	}

	resp := registerResponse{Outcome: string(res.Outcome), Roll: res.Roll, Name: res.Name}
	switch res.Outcome {
	case model.EnrollRegistered:
		resp.Success = true
		resp.Message = "Student registered successfully"
		c.JSON(http.StatusCreated, resp)
	case model.EnrollDuplicateIdentifier, model.EnrollDuplicateFace:
		resp.Error = res.Reason
		c.JSON(http.StatusConflict, resp)
	case model.EnrollNoFaceDetected:
		resp.Error = "No face detected in the image"
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		resp.Error = res.Reason
		c.JSON(http.StatusInternalServerError, resp)
	}
}
