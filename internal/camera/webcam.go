package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/mispartech/new-mispartechnologies-sub001/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// WebcamSource captures frames from a local video device via OpenCV.
type WebcamSource struct {
	deviceID int

	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// NewWebcamSource creates a local device camera.
func NewWebcamSource(cfg config.CameraConfig) *WebcamSource {
	return &WebcamSource{deviceID: cfg.DeviceID}
}

// Start opens the video device. A device that cannot be opened maps to
// ErrUnavailable so the workflow lands in its retry sub-state.
func (w *WebcamSource) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(w.deviceID)
	if err != nil {
		log.Warnf("Failed to open video device %d: %v", w.deviceID, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d did not open", ErrUnavailable, w.deviceID)
	}

	w.capture = capture
	log.Infof("Video device %d acquired", w.deviceID)
	return nil
}

// Capture grabs one frame and encodes it as JPEG.
func (w *WebcamSource) Capture(ctx context.Context) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil, ErrUnavailable
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := w.capture.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("failed to read frame from device %d", w.deviceID)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	// Copy out before the native buffer is released.
	frame := make([]byte, buf.Len())
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Stop releases the video device. Safe to call repeatedly.
func (w *WebcamSource) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture != nil {
		if err := w.capture.Close(); err != nil {
			log.Warnf("Failed to close video device %d: %v", w.deviceID, err)
		}
		w.capture = nil
		log.Infof("Video device %d released", w.deviceID)
	}
}
