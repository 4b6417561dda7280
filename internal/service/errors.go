package service

import (
	"errors"
	"fmt"
)

// Stage-local pipeline errors. Each maps to exactly one failing stage so
// handlers can tell setup problems apart from retry-worthy service failures.
var (
	ErrImageDecode           = errors.New("image could not be decoded")
	ErrImageEncode           = errors.New("image could not be re-encoded")
	ErrUpload                = errors.New("asset store rejected the upload")
	ErrURLResolution         = errors.New("asset store produced no public URL")
	ErrAnalysisNotConfigured = errors.New("analysis endpoint is not configured")
	ErrInvalidResponse       = errors.New("analysis response is missing required fields")
	ErrPersistence           = errors.New("meal record could not be persisted")

	ErrDraftNotFound = errors.New("draft not found")
	ErrPipelineBusy  = errors.New("a pipeline stage is still in flight")
)

// AnalysisServiceError reports a non-success status from the analysis
// backend and carries the response body for diagnostics.
type AnalysisServiceError struct {
	StatusCode int
	Body       string
}

func (e *AnalysisServiceError) Error() string {
	return fmt.Sprintf("analysis service returned status %d: %s", e.StatusCode, e.Body)
}
