package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okian/rollcall/internal/adapters/imagesrc"
	"github.com/okian/rollcall/internal/domain/model"
)

// recognizeRequest mirrors the OpenAPI schema for POST /recognize.
type recognizeRequest struct {
	Image string `json:"image"`
}

type recognizeResponse struct {
	Success       bool                   `json:"success"`
	Outcome       string                 `json:"outcome"`
	Roll          string                 `json:"roll,omitempty"`
	Name          string                 `json:"student_name,omitempty"`
	Score         float64                `json:"score,omitempty"`
	AlreadyMarked bool                   `json:"already_marked,omitempty"`
	Event         *model.AttendanceEvent `json:"event,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

// RecognizeHandler handles recognition requests.
type RecognizeHandler struct {
	deps Dependencies
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(deps Dependencies) *RecognizeHandler {
	return &RecognizeHandler{deps: deps}
}

// HandleRecognize handles POST /recognize.
func (h *RecognizeHandler) HandleRecognize(c *gin.Context) {
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_json", fmt.Errorf("%w: request must be JSON: %v", ErrBadRequest, err))
		return
	}
	image, err := imagesrc.DecodeDataURL(req.Image)
	if err != nil {
		if errors.Is(err, imagesrc.ErrMalformedDataURL) && req.Image == "" {
			err = ErrNoImage
		}
		writeError(c, http.StatusBadRequest, "invalid_image", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	res, err := h.deps.Recognize(c.Request.Context(), image)
	if err != nil {
		status, code := statusFor(err)
		writeError(c, status, code, err)
		return
	}

	resp := recognizeResponse{Outcome: string(res.Outcome)}
	switch res.Outcome {
	case model.RecognizeMatched:
		resp.Success = true
		resp.Roll = res.Roll
		resp.Name = res.Name
		resp.Score = res.Score
		resp.AlreadyMarked = res.AlreadyMarked
		resp.Event = res.Event
		resp.Message = "Attendance marked successfully"
		if res.AlreadyMarked {
			resp.Message = "Attendance already marked"
		}
		c.JSON(http.StatusOK, resp)
	case model.RecognizeNoFaceDetected:
		resp.Message = "No face detected in captured image"
		c.JSON(http.StatusUnprocessableEntity, resp)
	case model.RecognizeNotRecognized:
		resp.Message = "Student not recognized"
		c.JSON(http.StatusNotFound, resp)
	default:
		resp.Message = res.Reason
		c.JSON(http.StatusInternalServerError, resp)
	}
}
