// Package collab holds the clients for the external stage collaborators:
// the file upload sink, the Wetrocloud transcript engine, and the Podcastfy
// audio engine. The pipeline only ever talks to the interfaces defined here.
package collab

import (
	"context"
	"errors"
	"fmt"
	"net"

	"podforge/pkg/models"
)

// Sentinel errors for collaborator failures.
var (
	ErrUnreachable = errors.New("collaborator unreachable")
	ErrTimeout     = errors.New("collaborator call timed out")
	ErrRejected    = errors.New("collaborator rejected the request")
)

// UploadRequest carries one file destined for the upload sink.
type UploadRequest struct {
	FileName     string
	ContentType  string
	Content      []byte
	CollectionID string
}

// UploadResult is the durable reference returned by the upload sink.
type UploadResult struct {
	URL string
}

// Sink turns raw bytes into a durably addressable URL.
// Safe to call once per job.
type Sink interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// TranscriptRequest references the resource to turn into dialogue text.
type TranscriptRequest struct {
	CollectionID string
	ResourceURL  string
	ResourceType models.ResourceType
}

// TranscriptEngine converts a resource reference into dialogue text.
// Calls may take arbitrarily long; the HTTP client bounds them.
type TranscriptEngine interface {
	Generate(ctx context.Context, req TranscriptRequest) (string, error)
}

// SynthesizeRequest carries dialogue text for audio synthesis.
type SynthesizeRequest struct {
	Transcript   string
	CollectionID string
}

// SynthesizeResult is the public URL of the generated audio artifact.
type SynthesizeResult struct {
	URL string
}

// AudioEngine converts dialogue text into an audio file and a public URL.
type AudioEngine interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
