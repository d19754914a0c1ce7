package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
)

// ErrUnavailable is returned when the camera cannot be acquired. It maps to
// the permission-failure class: the workflow offers a manual retry instead
// of silently polling again.
var ErrUnavailable = errors.New("camera unavailable")

// Source is a camera the workflow can own for the duration of the
// recognizing phase. Start acquires the device, Capture grabs one still
// frame, Stop releases everything. A stopped source can be started again.
type Source interface {
	Start(ctx context.Context) error
	Capture(ctx context.Context) ([]byte, error)
	Stop()
}

// New creates the configured frame source.
func New(cfg config.CameraConfig) (Source, error) {
	switch cfg.Source {
	case "snapshot", "":
		if cfg.SnapshotURL == "" {
			return nil, fmt.Errorf("camera source 'snapshot' requires camera.snapshot_url")
		}
		return NewSnapshotSource(cfg), nil
	case "webcam":
		return NewWebcamSource(cfg), nil
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}
}
