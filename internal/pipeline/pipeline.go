// Package pipeline moves queued files through submission and result polling.
package pipeline

import (
	"context"
	"errors"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/cvfile"
)

const (
	MessageSending    = "Sending to server..."
	MessageProcessing = "Processing... waiting for analysis."
	MessageComplete   = "Analysis complete!"
	MessageUploadFail = "Upload failed"
	MessageFetchFail  = "Failed to fetch result"
	messageTimeout    = "Analysis timed out after %d attempts; the job may still be running on the server."
)

var (
	ErrMissingJobDescription = errors.New("job description is required")
	ErrAlreadyProcessing     = errors.New("queue is already being processed")
)

// Backend is the subset of the job API the pipeline depends on.
type Backend interface {
	CreateCandidate(ctx context.Context, jobDescription, cvFile string) (string, error)
	GetCandidate(ctx context.Context, id string) (*api.Candidate, error)
}

// Encoder turns a file into its transport encoding.
type Encoder func(ctx context.Context, f *cvfile.File) (string, error)
