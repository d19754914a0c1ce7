package visionhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/imaging"

	log "github.com/sirupsen/logrus"
)

// Machine-readable failure codes returned by the VisionHub backend.
const (
	CodeUnusablePhoto     = "unusable_photo"
	CodeDuplicateIdentity = "duplicate_identity"
	CodeNoFace            = "NO_FACE"
)

// ServiceError is a typed failure from the VisionHub service: either a
// transport problem or an unexpected response. It is never a validation
// rejection, those come back inside EnrollResult.
type ServiceError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("visionhub %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("visionhub %s failed (status %d): %s", e.Op, e.Status, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// EnrollResult carries the outcome of a one-shot enrollment call.
type EnrollResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client is a stateless wrapper around the VisionHub recognition backend.
// Every call is a single network round trip; retries are the caller's business.
type Client struct {
	config     config.VisionHubConfig
	httpClient *http.Client
}

// NewClient creates a new VisionHub client.
func NewClient(cfg config.VisionHubConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks whether the VisionHub service is reachable.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	apiURL, err := url.JoinPath(c.config.URL, "/api/v1/health")
	if err != nil {
		return false, fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, nil
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	log.Warnf("VisionHub connection test failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	return false, nil
}

// Enroll registers the face in the frame under the given subject reference.
// Validation rejections (unusable photo, duplicate identity) come back in the
// result; transport and protocol problems surface as *ServiceError.
func (c *Client) Enroll(ctx context.Context, frame *imaging.Frame, subjectRef string) (*EnrollResult, error) {
	body, contentType, err := buildFrameForm(frame, map[string]string{"subject_ref": subjectRef})
	if err != nil {
		return nil, &ServiceError{Op: "enroll", Err: err}
	}

	apiURL, err := url.JoinPath(c.config.URL, "/api/v1/faces/enroll")
	if err != nil {
		return nil, &ServiceError{Op: "enroll", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, body)
	if err != nil {
		return nil, &ServiceError{Op: "enroll", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "enroll", Err: err}
	}
	defer resp.Body.Close()
	log.Debugf("VisionHub enroll request took %s", time.Since(start))

	// 200 and 4xx both carry a decodable result body; the latter is a
	// validation rejection, not a transport failure.
	if resp.StatusCode != http.StatusOK && (resp.StatusCode < 400 || resp.StatusCode >= 500) {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &ServiceError{Op: "enroll", Status: resp.StatusCode, Message: string(bodyBytes)}
	}

	var result EnrollResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ServiceError{Op: "enroll", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if result.Success {
		log.Infof("Enrolled subject %s with VisionHub", subjectRef)
	} else {
		log.Infof("VisionHub rejected enrollment for %s: %s (%s)", subjectRef, result.Code, result.Message)
	}
	return &result, nil
}

// Recognize submits the frame for matching against the given organization
// reference and returns the normalized recognition outcome.
func (c *Client) Recognize(ctx context.Context, frame *imaging.Frame, orgRef string) (*Recognition, error) {
	body, contentType, err := buildFrameForm(frame, map[string]string{"org_ref": orgRef})
	if err != nil {
		return nil, &ServiceError{Op: "recognize", Err: err}
	}

	apiURL, err := url.JoinPath(c.config.URL, "/api/v1/faces/recognize")
	if err != nil {
		return nil, &ServiceError{Op: "recognize", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, body)
	if err != nil {
		return nil, &ServiceError{Op: "recognize", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-api-key", c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "recognize", Err: err}
	}
	defer resp.Body.Close()
	log.Debugf("VisionHub recognize request took %s", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &ServiceError{Op: "recognize", Status: resp.StatusCode, Message: string(bodyBytes)}
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &ServiceError{Op: "recognize", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	outcome := Normalize(&wire)
	log.Debugf("VisionHub recognize: %d tracked, %d unidentified, no_face=%t",
		len(outcome.Entities), len(outcome.Regions), outcome.NoFace)
	return outcome, nil
}

// buildFrameForm assembles the multipart body shared by both operations.
func buildFrameForm(frame *imaging.Frame, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
