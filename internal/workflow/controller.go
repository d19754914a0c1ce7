package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/camera"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/imaging"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/integrations/visionhub"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/server/sse"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/session"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/tracking"

	log "github.com/sirupsen/logrus"
)

// Phase is the single piece of process state gating camera and timers.
type Phase string

const (
	// PhaseEnroll waits for the trial user to register a face.
	PhaseEnroll Phase = "enroll"

	// PhaseRecognizing owns the camera and polls the backend.
	PhaseRecognizing Phase = "recognizing"

	// PhaseResult shows the confirmed match; camera is released.
	PhaseResult Phase = "result"
)

// ErrSessionUnavailable marks a trial-session store failure during
// enrollment, as opposed to a bad upload or a backend problem.
var ErrSessionUnavailable = errors.New("trial session unavailable")

// Enroller is the one backend operation the controller needs besides the
// engine's recognize path.
type Enroller interface {
	Enroll(ctx context.Context, frame *imaging.Frame, subjectRef string) (*visionhub.EnrollResult, error)
}

// Notifier receives phase transitions and confirmed attendances, e.g. for
// MQTT publication. Implementations must not block.
type Notifier interface {
	PublishPhase(phase string)
	PublishAttendance(entity tracking.TrackedEntity)
}

// State is the snapshot of the controller handed to the UI.
type State struct {
	Phase       Phase                   `json:"phase"`
	CameraError bool                    `json:"camera_error"`
	LastError   string                  `json:"last_error,omitempty"`
	Tracking    tracking.Snapshot       `json:"tracking"`
	Result      *tracking.TrackedEntity `json:"result,omitempty"`
}

// Controller sequences the enroll → recognizing → result workflow. It owns
// the camera and the polling timers for the duration of the recognizing
// phase; stopping capture tears both down as one operation. There is no
// terminal phase, reset and re-enroll are always available.
type Controller struct {
	cfg      config.WorkflowConfig
	store    session.Store
	engine   *tracking.Engine
	cam      camera.Source
	codec    *imaging.Codec
	enroller Enroller
	hub      *sse.Hub // optional
	notifier Notifier // optional
	onResult func(entity tracking.TrackedEntity)

	mu          sync.Mutex
	phase       Phase
	cameraError bool
	lastError   string
	result      *tracking.TrackedEntity
	resultFired bool
	closed      bool
	starting    bool

	// generation identifies the current recognizing run; late timers and
	// in-flight responses from an older run are discarded.
	generation int
	runCancel  context.CancelFunc
	runDone    chan struct{}
}

// Options carries the optional collaborators of the controller.
type Options struct {
	Hub      *sse.Hub
	Notifier Notifier
	OnResult func(entity tracking.TrackedEntity)
}

// NewController wires the workflow. The initial phase is recognizing when
// the session store reports an enrolled trial session, enroll otherwise.
func NewController(cfg config.WorkflowConfig, store session.Store, engine *tracking.Engine,
	cam camera.Source, codec *imaging.Codec, enroller Enroller, opts Options) *Controller {

	phase := PhaseEnroll
	if store.IsEnrolled() {
		phase = PhaseRecognizing
	}

	return &Controller{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		cam:      cam,
		codec:    codec,
		enroller: enroller,
		hub:      opts.Hub,
		notifier: opts.Notifier,
		onResult: opts.OnResult,
		phase:    phase,
	}
}

// Start begins the workflow. When the initial phase is recognizing the
// camera is acquired immediately.
func (c *Controller) Start() {
	c.mu.Lock()
	phase := c.phase
	c.mu.Unlock()

	log.Infof("Workflow starting in phase %q", phase)
	c.announcePhase(phase)
	if phase == PhaseRecognizing {
		c.startCapture()
	}
}

// Phase returns the current workflow phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns the UI-facing snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Phase:       c.phase,
		CameraError: c.cameraError,
		LastError:   c.lastError,
		Tracking:    c.engine.Snapshot(),
		Result:      c.result,
	}
}

// EnrollPhoto runs the one-shot enrollment with an uploaded photo. On
// success the store is stamped and, after the acknowledgment delay, the
// workflow moves to recognizing. Validation rejections keep the phase so
// the user can retry immediately.
func (c *Controller) EnrollPhoto(ctx context.Context, imageData []byte) (*visionhub.EnrollResult, error) {
	c.mu.Lock()
	if c.phase != PhaseEnroll {
		phase := c.phase
		c.mu.Unlock()
		log.Warnf("EnrollPhoto called in phase %q, ignoring", phase)
		return &visionhub.EnrollResult{Success: false, Code: "wrong_phase"}, nil
	}
	c.mu.Unlock()

	frame, err := c.codec.Encode(imageData)
	if err != nil {
		return nil, err
	}

	sess, err := c.store.GetOrCreate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	result, err := c.enroller.Enroll(ctx, frame, sess.ID)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, nil
	}

	if err := c.store.MarkEnrolled(); err != nil {
		log.Warnf("Failed to persist enrollment stamp: %v", err)
	}

	// Leave the success acknowledgment visible before the camera appears.
	gen := c.currentGeneration()
	time.AfterFunc(c.enrollAckDelay(), func() {
		c.mu.Lock()
		if c.closed || c.phase != PhaseEnroll || c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.phase = PhaseRecognizing
		c.mu.Unlock()

		c.announcePhase(PhaseRecognizing)
		c.startCapture()
	})

	return result, nil
}

// Reset returns from the result phase to recognizing without re-running
// enrollment: residual result state is discarded and the camera restarts.
// Ignored in the enroll phase; the camera belongs to enrolled kiosks only.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.phase == PhaseEnroll {
		c.mu.Unlock()
		log.Warn("Reset called in enroll phase, ignoring")
		return
	}
	c.mu.Unlock()

	c.stopCapture()

	c.mu.Lock()
	c.engine.Clear()
	c.phase = PhaseRecognizing
	c.result = nil
	c.lastError = ""
	c.mu.Unlock()

	c.announcePhase(PhaseRecognizing)
	c.startCapture()
}

// ReEnroll discards camera and tracked state and returns to the first phase.
// The trial session itself keeps its expiry horizon. A no-op when already
// in the enroll phase.
func (c *Controller) ReEnroll() {
	c.mu.Lock()
	if c.phase == PhaseEnroll {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.stopCapture()

	c.mu.Lock()
	c.engine.Clear()
	c.phase = PhaseEnroll
	c.result = nil
	c.lastError = ""
	c.mu.Unlock()

	c.announcePhase(PhaseEnroll)
}

// RetryCamera re-attempts camera acquisition from the error sub-state.
func (c *Controller) RetryCamera() {
	c.mu.Lock()
	if c.phase != PhaseRecognizing || !c.cameraError {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.startCapture()
}

// Close tears the workflow down; the camera is released on this path too.
func (c *Controller) Close() {
	c.stopCapture()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	log.Info("Workflow closed")
}

// startCapture acquires the camera and starts the polling and pruning
// loop for a new recognizing run. The capture loop has exactly one owner:
// while a run is active or being started, further calls are no-ops, so
// racing retry or reset requests cannot spawn a second loop.
func (c *Controller) startCapture() {
	c.mu.Lock()
	if c.closed || c.starting || c.runCancel != nil {
		c.mu.Unlock()
		return
	}
	c.starting = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	if err := c.cam.Start(ctx); err != nil {
		cancel()
		log.Errorf("Camera acquisition failed: %v", err)
		c.mu.Lock()
		c.starting = false
		c.cameraError = true
		c.mu.Unlock()
		c.broadcastState()
		return
	}

	c.mu.Lock()
	c.starting = false
	if c.closed {
		c.mu.Unlock()
		cancel()
		c.cam.Stop()
		return
	}
	c.generation++
	gen := c.generation
	c.cameraError = false
	c.runCancel = cancel
	c.runDone = make(chan struct{})
	done := c.runDone
	c.mu.Unlock()

	c.broadcastState()
	go c.pollLoop(ctx, gen, done)
}

// stopCapture cancels the polling loop and releases the camera as one
// atomic teardown. Safe to call when no run is active.
func (c *Controller) stopCapture() {
	c.mu.Lock()
	cancel := c.runCancel
	done := c.runDone
	c.runCancel = nil
	c.runDone = nil
	c.generation++ // invalidate pending timers of the old run
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	c.cam.Stop()
}

// pollLoop submits frames on the poll cadence and prunes stale entities on
// its own cadence until the run is cancelled.
func (c *Controller) pollLoop(ctx context.Context, gen int, done chan struct{}) {
	defer close(done)

	pollTicker := time.NewTicker(c.pollInterval())
	defer pollTicker.Stop()
	pruneTicker := time.NewTicker(c.pruneInterval())
	defer pruneTicker.Stop()

	log.Debugf("Recognition polling started (run %d)", gen)
	for {
		select {
		case <-ctx.Done():
			log.Debugf("Recognition polling stopped (run %d)", gen)
			return
		case <-pruneTicker.C:
			c.engine.PruneStale()
			c.broadcastState()
		case <-pollTicker.C:
			c.submitOnce(ctx, gen)
		}
	}
}

// submitOnce captures and submits a single frame, then applies the pause
// policy if this run is still current.
func (c *Controller) submitOnce(ctx context.Context, gen int) {
	raw, err := c.cam.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warnf("Frame capture failed: %v", err)
		c.setLastError("capture_failed")
		return
	}

	frame, err := c.codec.Encode(raw)
	if err != nil {
		log.Warnf("Frame encode failed: %v", err)
		c.setLastError("encode_failed")
		return
	}

	if err := c.engine.SubmitFrame(ctx, frame); err != nil {
		if ctx.Err() != nil {
			// Run was cancelled mid-flight; the engine never saw the response.
			return
		}
		c.setLastError("recognition_failed")
		c.broadcastState()
		return
	}

	// A response that lands after the run stopped must not drive transitions.
	if c.currentGeneration() != gen {
		return
	}

	c.setLastError("")
	c.broadcastState()

	if c.engine.ShouldPause() {
		c.handleConfirmed(gen)
	}
}

// handleConfirmed stops capture and, after the acknowledgment delay, moves
// to the result phase. The completion callback fires exactly once.
func (c *Controller) handleConfirmed(gen int) {
	confirmed := c.confirmedEntity()
	if confirmed == nil {
		return
	}
	log.Infof("Attendance confirmed for %s (%s)", confirmed.DisplayName, confirmed.ID)

	c.mu.Lock()
	if c.generation != gen || c.phase != PhaseRecognizing {
		c.mu.Unlock()
		return
	}
	c.result = confirmed
	c.mu.Unlock()

	if c.notifier != nil {
		c.notifier.PublishAttendance(*confirmed)
	}
	c.broadcastState()

	// Releasing the camera here also stops this polling loop. Do it from a
	// separate goroutine: stopCapture waits for the loop to exit.
	go func() {
		c.stopCapture()

		time.AfterFunc(c.matchAckDelay(), func() {
			c.mu.Lock()
			if c.closed || c.phase != PhaseRecognizing || c.result == nil {
				c.mu.Unlock()
				return
			}
			c.phase = PhaseResult
			fire := !c.resultFired
			c.resultFired = true
			entity := *c.result
			c.mu.Unlock()

			c.announcePhase(PhaseResult)
			if fire && c.onResult != nil {
				c.onResult(entity)
			}
		})
	}()
}

// confirmedEntity returns the first confirmed tracked entity, if any.
func (c *Controller) confirmedEntity() *tracking.TrackedEntity {
	snap := c.engine.Snapshot()
	for i := range snap.Entities {
		if snap.Entities[i].State == tracking.StateConfirmed {
			return &snap.Entities[i]
		}
	}
	return nil
}

func (c *Controller) currentGeneration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Controller) setLastError(code string) {
	c.mu.Lock()
	c.lastError = code
	c.mu.Unlock()
}

// announcePhase broadcasts a phase change to SSE clients and the notifier.
func (c *Controller) announcePhase(phase Phase) {
	if c.hub != nil {
		c.hub.BroadcastEvent("phase", map[string]string{"phase": string(phase)})
	}
	if c.notifier != nil {
		c.notifier.PublishPhase(string(phase))
	}
}

// broadcastState pushes the current UI snapshot to SSE clients.
func (c *Controller) broadcastState() {
	if c.hub == nil {
		return
	}
	c.hub.BroadcastEvent("state", c.State())
}

func (c *Controller) pollInterval() time.Duration {
	if c.cfg.PollInterval > 0 {
		return c.cfg.PollInterval
	}
	return 2 * time.Second
}

func (c *Controller) pruneInterval() time.Duration {
	if c.cfg.PruneInterval > 0 {
		return c.cfg.PruneInterval
	}
	return time.Second
}

func (c *Controller) enrollAckDelay() time.Duration {
	if c.cfg.EnrollAckDelay > 0 {
		return c.cfg.EnrollAckDelay
	}
	return 1500 * time.Millisecond
}

func (c *Controller) matchAckDelay() time.Duration {
	if c.cfg.MatchAckDelay > 0 {
		return c.cfg.MatchAckDelay
	}
	return 2 * time.Second
}
