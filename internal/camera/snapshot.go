package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"

	log "github.com/sirupsen/logrus"
)

// SnapshotSource captures still frames from an HTTP camera endpoint
// (IP camera or NVR snapshot URL).
type SnapshotSource struct {
	url        string
	httpClient *http.Client
	started    bool
}

// NewSnapshotSource creates an HTTP still-frame camera.
func NewSnapshotSource(cfg config.CameraConfig) *SnapshotSource {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SnapshotSource{
		url: cfg.SnapshotURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Start verifies the endpoint answers before the polling loop begins.
func (s *SnapshotSource) Start(ctx context.Context) error {
	if _, err := s.fetch(ctx); err != nil {
		log.Warnf("Snapshot camera at %s not reachable: %v", s.url, err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.started = true
	log.Infof("Snapshot camera acquired: %s", s.url)
	return nil
}

// Capture grabs one frame from the snapshot endpoint.
func (s *SnapshotSource) Capture(ctx context.Context) ([]byte, error) {
	if !s.started {
		return nil, ErrUnavailable
	}
	return s.fetch(ctx)
}

// Stop releases the source. The HTTP client holds no device handle, so
// this only flips the ownership flag.
func (s *SnapshotSource) Stop() {
	s.started = false
}

func (s *SnapshotSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Debugf("Snapshot endpoint returned status %d: %s", resp.StatusCode, string(bodyBytes))
		return nil, fmt.Errorf("snapshot request failed with status %s", resp.Status)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}
	return frame, nil
}
