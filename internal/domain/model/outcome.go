package model

// EnrollOutcome is the decision returned by an enrollment attempt.
type EnrollOutcome string

// Enrollment outcomes.
const (
	EnrollRegistered          EnrollOutcome = "registered"
	EnrollDuplicateIdentifier EnrollOutcome = "duplicate_identifier"
	EnrollDuplicateFace       EnrollOutcome = "duplicate_face"
	EnrollNoFaceDetected      EnrollOutcome = "no_face_detected"
	EnrollError               EnrollOutcome = "error"
)

// RecognizeOutcome is the decision returned by a recognition attempt.
type RecognizeOutcome string

// Recognition outcomes.
const (
	RecognizeMatched        RecognizeOutcome = "matched"
	RecognizeNoFaceDetected RecognizeOutcome = "no_face_detected"
	RecognizeNotRecognized  RecognizeOutcome = "not_recognized"
	RecognizeError          RecognizeOutcome = "error"
)

// EnrollResult carries the enrollment outcome. Roll and Name are set for
// Registered (the new identity) and for both duplicate outcomes (the
// conflicting identity).
type EnrollResult struct {
	Outcome EnrollOutcome `json:"outcome"`
	Roll    string        `json:"roll,omitempty"`
	Name    string        `json:"name,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

// RecognizeResult carries the recognition outcome.
type RecognizeResult struct {
	Outcome       RecognizeOutcome `json:"outcome"`
	Roll          string           `json:"roll,omitempty"`
	Name          string           `json:"name,omitempty"`
	Score         float64          `json:"score,omitempty"`
	AlreadyMarked bool             `json:"already_marked,omitempty"`
	Event         *AttendanceEvent `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}
