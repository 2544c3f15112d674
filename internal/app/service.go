// Package service composes the matching engine with its collaborators and
// implements the operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/adapters/imagesrc"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/attendance"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/extract"
	"github.com/okian/rollcall/internal/domain/matcher"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// EnrollRequest registers a new identity from an encoded image.
type EnrollRequest struct {
	Roll  string
	Name  string
	Image []byte
}

// Registration answers a check-registration query.
type Registration struct {
	Exists       bool      `json:"exists"`
	Roll         string    `json:"roll,omitempty"`
	Name         string    `json:"name,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
}

// Service implements the enrollment and recognition workflows.
type Service struct {
	mu sync.RWMutex

	// enrollMu makes check-then-insert atomic within the process.
	enrollMu sync.Mutex

	store     repository.Store
	extractor *extract.Extractor
	guard     *matcher.Guard
	matcher   *matcher.Matcher
	deduper   dedupe.Deduper
	recorder  *attendance.Recorder
	archive   *imagesrc.Archive
	now       func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Components not supplied through options get
// defaults when the service starts.
func New(opts ...Option) *Service {
	s := &Service{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start wires defaults and marks the service ready.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		return fmt.Errorf("%w: no store configured", ErrPersistence)
	}
	if s.extractor == nil {
		s.extractor = extract.New(nil)
	}
	if s.guard == nil {
		s.guard = matcher.NewGuard()
	}
	if s.matcher == nil {
		s.matcher = matcher.New()
	}
	var recOpts []attendance.Option
	if s.deduper != nil {
		recOpts = append(recOpts, attendance.WithDeduper(s.deduper))
	}
	s.recorder = attendance.NewRecorder(s.store, recOpts...)

	if !s.extractor.DetectorAvailable() {
		s.logger.Warn(ctx, "no face detector configured; every image will report no face")
	}
	s.started = true
	s.logger.Info(ctx, "attendance service started",
		logger.String("backend", s.store.Backend()),
		logger.Float64("enroll_threshold", s.guard.Threshold()),
		logger.Float64("recognize_threshold", s.matcher.Threshold()),
		logger.String("match_policy", string(s.matcher.Policy())),
		logger.Bool("detector", s.extractor.DetectorAvailable()),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "attendance service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Enroll registers req as a new identity. Identifier uniqueness and face
// uniqueness are both checked. The returned error is non-nil exactly when
// the outcome is EnrollError.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (model.EnrollResult, error) {
	if err := s.ready(); err != nil {
		return s.enrollFailed(ctx, err)
	}
	req.Roll = strings.TrimSpace(req.Roll)
	req.Name = strings.TrimSpace(req.Name)
	if missing := missingFields(req); len(missing) > 0 {
		return s.enrollFailed(ctx, fmt.Errorf("%w: missing required fields: %s", ErrInvalidRequest, strings.Join(missing, ", ")))
	}

	s.enrollMu.Lock()
	defer s.enrollMu.Unlock()

	existing, err := s.store.FindByRoll(ctx, req.Roll)
	switch {
	case err == nil:
		return s.enrolled(ctx, model.EnrollResult{
			Outcome: model.EnrollDuplicateIdentifier,
			Roll:    existing.Roll,
			Name:    existing.Name,
			Reason:  fmt.Sprintf("roll %s is already registered", existing.Roll),
		}), nil
	case !errors.Is(err, repository.ErrNotFound):
		metrics.RecordStoreError("find_by_roll")
		return s.enrollFailed(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	descriptor, err := s.extract(ctx, req.Image)
	if err != nil {
		return s.enrolled(ctx, model.EnrollResult{
			Outcome: model.EnrollNoFaceDetected,
			Roll:    req.Roll,
			Reason:  err.Error(),
		}), nil
	}

	gallery, err := s.store.ListIdentities(ctx)
	if err != nil {
		metrics.RecordStoreError("list_identities")
		return s.enrollFailed(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	start := time.Now()
	dup, scan := s.guard.CheckDuplicate(descriptor, gallery)
	s.observeScan(ctx, "enroll", len(gallery), scan, start)
	if dup.Duplicate {
		return s.enrolled(ctx, model.EnrollResult{
			Outcome: model.EnrollDuplicateFace,
			Roll:    dup.Roll,
			Name:    dup.Name,
			Reason:  fmt.Sprintf("face already registered with roll %s (%s)", dup.Roll, dup.Name),
		}), nil
	}

	if s.archive != nil {
		if _, err := s.archive.Save(req.Roll, req.Image); err != nil {
			metrics.RecordStoreError("archive_image")
			return s.enrollFailed(ctx, fmt.Errorf("%w: archive image: %w", ErrPersistence, err))
		}
	}

	id := model.Identity{
		Roll:         req.Roll,
		Name:         req.Name,
		Encodings:    []model.Descriptor{descriptor},
		RegisteredAt: s.now().UTC(),
	}
	if err := s.store.InsertIdentity(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDuplicateRoll) {
			return s.enrolled(ctx, model.EnrollResult{
				Outcome: model.EnrollDuplicateIdentifier,
				Roll:    req.Roll,
				Reason:  fmt.Sprintf("roll %s is already registered", req.Roll),
			}), nil
		}
		metrics.RecordStoreError("insert_identity")
		return s.enrollFailed(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	metrics.UpdateGallerySize(len(gallery) + 1)
	return s.enrolled(ctx, model.EnrollResult{
		Outcome: model.EnrollRegistered,
		Roll:    id.Roll,
		Name:    id.Name,
	}), nil
}

// Recognize identifies the face in image and records attendance on a match.
// The returned error is non-nil exactly when the outcome is RecognizeError.
func (s *Service) Recognize(ctx context.Context, image []byte) (model.RecognizeResult, error) {
	if err := s.ready(); err != nil {
		return s.recognizeFailed(ctx, err)
	}
	if len(image) == 0 {
		return s.recognizeFailed(ctx, fmt.Errorf("%w: missing required fields: image", ErrInvalidRequest))
	}

	descriptor, err := s.extract(ctx, image)
	if err != nil {
		return s.recognized(ctx, model.RecognizeResult{
			Outcome: model.RecognizeNoFaceDetected,
			Reason:  err.Error(),
		}), nil
	}

	gallery, err := s.store.ListIdentities(ctx)
	if err != nil {
		metrics.RecordStoreError("list_identities")
		return s.recognizeFailed(ctx, fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	start := time.Now()
	hit, ok, scan := s.matcher.Match(descriptor, gallery)
	s.observeScan(ctx, "recognize", len(gallery), scan, start)
	if !ok {
		return s.recognized(ctx, model.RecognizeResult{
			Outcome: model.RecognizeNotRecognized,
			Reason:  "face not recognized",
		}), nil
	}

	ev, suppressed, err := s.recorder.Record(ctx, hit.Identity, s.now())
	if err != nil {
		metrics.RecordStoreError("append_event")
		return s.recognizeFailed(ctx, fmt.Errorf("%w: record attendance for %s: %w", ErrPersistence, hit.Identity.Roll, err))
	}

	res := model.RecognizeResult{
		Outcome:       model.RecognizeMatched,
		Roll:          hit.Identity.Roll,
		Name:          hit.Identity.Name,
		Score:         hit.Score,
		AlreadyMarked: suppressed,
	}
	if suppressed {
		metrics.RecordAttendanceSuppressed()
	} else {
		metrics.RecordAttendanceEvent()
		res.Event = &ev
	}
	return s.recognized(ctx, res), nil
}

// CheckRegistration reports whether roll is enrolled.
func (s *Service) CheckRegistration(ctx context.Context, roll string) (Registration, error) {
	if err := s.ready(); err != nil {
		return Registration{}, err
	}
	roll = strings.TrimSpace(roll)
	if roll == "" {
		return Registration{}, fmt.Errorf("%w: roll number is required", ErrInvalidRequest)
	}
	id, err := s.store.FindByRoll(ctx, roll)
	if errors.Is(err, repository.ErrNotFound) {
		return Registration{Exists: false}, nil
	}
	if err != nil {
		metrics.RecordStoreError("find_by_roll")
		return Registration{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return Registration{
		Exists:       true,
		Roll:         id.Roll,
		Name:         id.Name,
		RegisteredAt: id.RegisteredAt,
	}, nil
}

// Report returns the attendance events of day's calendar date in day's
// location, newest first.
func (s *Service) Report(ctx context.Context, day time.Time) ([]model.AttendanceEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)
	events, err := s.store.ListEvents(ctx, from, to)
	if err != nil {
		metrics.RecordStoreError("list_events")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return events, nil
}

// Today returns Report for the current date.
func (s *Service) Today(ctx context.Context) ([]model.AttendanceEvent, error) {
	return s.Report(ctx, s.now())
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": started,
	}
	if !started {
		return stats
	}

	stats["backend"] = s.store.Backend()
	stats["enrollThreshold"] = s.guard.Threshold()
	stats["recognizeThreshold"] = s.matcher.Threshold()
	stats["matchPolicy"] = string(s.matcher.Policy())
	stats["detectorAvailable"] = s.extractor.DetectorAvailable()
	if s.deduper != nil {
		stats["dedupeWindowSeconds"] = s.deduper.Window().Seconds()
		stats["dedupeTracked"] = s.deduper.Size()
	}

	if gallery, err := s.store.ListIdentities(ctx); err == nil {
		stats["gallerySize"] = len(gallery)
		metrics.UpdateGallerySize(len(gallery))
	} else {
		s.logger.Warn(ctx, "stats: listing identities", logger.Error(err))
	}
	if events, err := s.Today(ctx); err == nil {
		stats["eventsToday"] = len(events)
	} else {
		s.logger.Warn(ctx, "stats: listing events", logger.Error(err))
	}
	return stats
}

func (s *Service) extract(ctx context.Context, image []byte) (model.Descriptor, error) {
	start := time.Now()
	d, err := s.extractor.ExtractEncoded(ctx, image)
	metrics.RecordExtractionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		s.logger.Debug(ctx, "extraction failed", logger.Error(err))
	}
	return d, err
}

// observeScan logs and counts gallery entries that took no part in a scan.
func (s *Service) observeScan(ctx context.Context, op string, size int, scan matcher.Scan, start time.Time) {
	metrics.RecordMatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateGallerySize(size)
	for _, sk := range scan.Skipped {
		s.logger.Warn(ctx, "skipped gallery record",
			logger.String("op", op),
			logger.String("roll", sk.Roll),
			logger.Int("index", sk.Index),
			logger.String("reason", string(sk.Reason)),
			logger.Error(sk.Err),
		)
	}
	for reason, n := range scan.SkippedByReason() {
		metrics.RecordGallerySkips(string(reason), n)
	}
	s.logger.Debug(ctx, "gallery scanned",
		logger.String("op", op),
		logger.Int("gallery", size),
		logger.Int("scanned", scan.Scanned),
		logger.Int("compared", scan.Compared),
		logger.Int("skipped", len(scan.Skipped)),
	)
}

func (s *Service) enrolled(ctx context.Context, res model.EnrollResult) model.EnrollResult {
	metrics.RecordEnrollment(string(res.Outcome))
	s.log().Info(ctx, "enrollment",
		logger.String("outcome", string(res.Outcome)),
		logger.String("roll", res.Roll),
	)
	return res
}

func (s *Service) enrollFailed(ctx context.Context, err error) (model.EnrollResult, error) {
	metrics.RecordEnrollment(string(model.EnrollError))
	s.log().Error(ctx, "enrollment failed", logger.Error(err))
	return model.EnrollResult{Outcome: model.EnrollError, Reason: err.Error()}, err
}

func (s *Service) recognized(ctx context.Context, res model.RecognizeResult) model.RecognizeResult {
	metrics.RecordRecognition(string(res.Outcome))
	s.log().Info(ctx, "recognition",
		logger.String("outcome", string(res.Outcome)),
		logger.String("roll", res.Roll),
		logger.Float64("score", res.Score),
		logger.Bool("already_marked", res.AlreadyMarked),
	)
	return res
}

func (s *Service) recognizeFailed(ctx context.Context, err error) (model.RecognizeResult, error) {
	metrics.RecordRecognition(string(model.RecognizeError))
	s.log().Error(ctx, "recognition failed", logger.Error(err))
	return model.RecognizeResult{Outcome: model.RecognizeError, Reason: err.Error()}, err
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.NewNop()
	}
	return s.logger
}

func missingFields(req EnrollRequest) []string {
	var missing []string
	if req.Name == "" {
		missing = append(missing, "name")
	}
	if req.Roll == "" {
		missing = append(missing, "roll")
	}
	if len(req.Image) == 0 {
		missing = append(missing, "image")
	}
	return missing
}
