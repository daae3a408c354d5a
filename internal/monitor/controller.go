// Package monitor owns the proctoring session lifecycle: it samples the
// capture device on a fixed cadence, runs the frame analyzer, accumulates
// anomaly records and exposes the latest status snapshot to pollers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/analyzer"
	"github.com/dudu/proctor/internal/camera"
	"github.com/dudu/proctor/internal/verify"
)

// DefaultInterval is the sampling cadence. The interval is a floor, not an
// exact period: a slow tick delays the next sampling boundary.
const DefaultInterval = time.Second

// ErrAlreadyMonitoring is returned by StartMonitoring during an active session
var ErrAlreadyMonitoring = errors.New("a monitoring session is already active")

// ErrNotMonitoring is returned by StopMonitoring with no active session
var ErrNotMonitoring = errors.New("no monitoring session is active")

// FrameSource yields frames on demand. Satisfied by *camera.Capture.
type FrameSource interface {
	Read(frame *gocv.Mat) bool
	Close() error
}

// FrameAnalyzer runs the per-frame analysis. Satisfied by *analyzer.Analyzer.
type FrameAnalyzer interface {
	Analyze(frame gocv.Mat) analyzer.Result
}

// session is the aggregate for one monitored subject
type session struct {
	id           uuid.UUID
	subjectID    string
	startTime    time.Time
	source       FrameSource
	reference    gocv.Mat
	hasReference bool
	latestFrame  gocv.Mat
	anomalies    []AnomalyRecord
	status       analyzer.Status
	cancel       context.CancelFunc
	done         chan struct{}
}

// Controller drives at most one monitoring session at a time. Running
// multiple subjects concurrently takes one controller (and one capture
// device) per subject; that is a deliberate scaling constraint.
type Controller struct {
	analyzer FrameAnalyzer
	store    *verify.Store
	deviceID int
	interval time.Duration
	logger   *logrus.Logger

	// test seam; defaults to opening the configured capture device
	openSource func() (FrameSource, error)

	mu      sync.RWMutex
	current *session
}

// NewController creates a controller sampling the given capture device.
// interval <= 0 selects DefaultInterval.
func NewController(a FrameAnalyzer, store *verify.Store, deviceID int, interval time.Duration, logger *logrus.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	c := &Controller{
		analyzer: a,
		store:    store,
		deviceID: deviceID,
		interval: interval,
		logger:   logger,
	}
	c.openSource = func() (FrameSource, error) {
		return camera.Open(c.deviceID)
	}
	return c
}

// StartMonitoring acquires the capture device and begins periodic sampling
// for the subject. Capture failure is fatal and surfaced immediately; a
// missing reference photo is tolerated (identity-mismatch anomalies are
// simply never raised for the session).
func (c *Controller) StartMonitoring(subjectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return ErrAlreadyMonitoring
	}

	source, err := c.openSource()
	if err != nil {
		return fmt.Errorf("failed to acquire capture device: %w", err)
	}

	s := &session{
		id:          uuid.New(),
		subjectID:   subjectID,
		startTime:   time.Now(),
		source:      source,
		latestFrame: gocv.NewMat(),
		done:        make(chan struct{}),
		status: analyzer.Status{
			HeadPose:    analyzer.StatusUnknown,
			LeftEyeDir:  analyzer.StatusUnknown,
			RightEyeDir: analyzer.StatusUnknown,
		},
	}

	s.reference, s.hasReference = c.store.LoadReferenceGray(subjectID)
	if !s.hasReference {
		c.logger.WithField("subject", subjectID).Info("no reference photo enrolled, identity checks disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	c.current = s

	c.logger.WithFields(logrus.Fields{
		"subject": subjectID,
		"session": s.id,
	}).Info("monitoring started")

	go c.run(ctx, s)
	return nil
}

// run is the sampling loop. Cancellation is checked at the top of each
// tick, never mid-processing.
func (c *Controller) run(ctx context.Context, s *session) {
	defer close(s.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.processTick(s)
		}
	}
}

// processTick captures and analyzes one frame, appending any anomalies and
// overwriting the live status. Per-tick failures never end the session.
func (c *Controller) processTick(s *session) {
	frame := gocv.NewMat()
	defer frame.Close()

	if !s.source.Read(&frame) || frame.Empty() {
		c.logger.Warn("capture yielded no frame, skipping tick")
		return
	}

	now := time.Now()
	result := c.analyzer.Analyze(frame)
	records := deriveAnomalies(result, now)

	// identity check shares the tick's frame; a fresh capture here would
	// race the analysis one frame apart
	if s.hasReference && result.NumFaces == 1 {
		region := frame.Region(result.Faces[0])
		similarity := verify.CompareTemplate(region, s.reference)
		region.Close()

		if similarity < verify.TemplateThreshold {
			records = append(records, AnomalyRecord{
				Timestamp:  now,
				Kind:       AnomalyFaceMismatch,
				Confidence: 1.0 - similarity,
			})
		}
	}

	c.mu.Lock()
	s.anomalies = append(s.anomalies, records...)
	s.status = result.Status()
	if !s.latestFrame.Empty() {
		s.latestFrame.Close()
	}
	s.latestFrame = frame.Clone()
	c.mu.Unlock()

	if len(records) > 0 {
		c.logger.WithFields(logrus.Fields{
			"subject":   s.subjectID,
			"anomalies": len(records),
			"num_faces": result.NumFaces,
		}).Debug("tick recorded anomalies")
	}
}

// StopMonitoring halts the sampling loop, releases the capture device and
// returns the accumulated anomaly log by value. The session is discarded;
// a later StartMonitoring creates a fresh one.
func (c *Controller) StopMonitoring() ([]AnomalyRecord, error) {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return nil, ErrNotMonitoring
	}

	s.cancel()
	<-s.done // the device must not be released under a live loop

	if err := s.source.Close(); err != nil {
		c.logger.WithError(err).Warn("failed to release capture device")
	}
	s.reference.Close()
	if !s.latestFrame.Empty() {
		s.latestFrame.Close()
	}

	c.logger.WithFields(logrus.Fields{
		"subject":   s.subjectID,
		"session":   s.id,
		"anomalies": len(s.anomalies),
		"duration":  time.Since(s.startTime),
	}).Info("monitoring stopped")

	out := make([]AnomalyRecord, len(s.anomalies))
	copy(out, s.anomalies)
	return out, nil
}

// Anomalies returns a copy of the anomaly log accumulated so far. Safe to
// call concurrently with the sampling loop; growth is monotonic.
func (c *Controller) Anomalies() []AnomalyRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return nil
	}
	out := make([]AnomalyRecord, len(c.current.anomalies))
	copy(out, c.current.anomalies)
	return out
}

// LiveStatus returns the most recent tick's status snapshot
func (c *Controller) LiveStatus() analyzer.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return analyzer.Status{
			HeadPose:    analyzer.StatusUnknown,
			LeftEyeDir:  analyzer.StatusUnknown,
			RightEyeDir: analyzer.StatusUnknown,
		}
	}
	return c.current.status
}

// Monitoring reports whether a session is active
func (c *Controller) Monitoring() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// SessionID returns the active session's id, or uuid.Nil
func (c *Controller) SessionID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return uuid.Nil
	}
	return c.current.id
}
