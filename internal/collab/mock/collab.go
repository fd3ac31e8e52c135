// Package mock provides function-field fakes for the stage collaborators.
package mock

import (
	"context"

	"podforge/internal/collab"
)

// Sink satisfies collab.Sink for testing.
type Sink struct {
	UploadFunc func(ctx context.Context, req collab.UploadRequest) (*collab.UploadResult, error)
}

func (m *Sink) Upload(ctx context.Context, req collab.UploadRequest) (*collab.UploadResult, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, req)
	}
	return &collab.UploadResult{URL: "https://files.example.com/" + req.FileName}, nil
}

// TranscriptEngine satisfies collab.TranscriptEngine for testing.
type TranscriptEngine struct {
	GenerateFunc func(ctx context.Context, req collab.TranscriptRequest) (string, error)
}

func (m *TranscriptEngine) Generate(ctx context.Context, req collab.TranscriptRequest) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "<Person1>Hello</Person1>\n<Person2>Hi there</Person2>", nil
}

// AudioEngine satisfies collab.AudioEngine for testing.
type AudioEngine struct {
	SynthesizeFunc func(ctx context.Context, req collab.SynthesizeRequest) (*collab.SynthesizeResult, error)
}

func (m *AudioEngine) Synthesize(ctx context.Context, req collab.SynthesizeRequest) (*collab.SynthesizeResult, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return &collab.SynthesizeResult{URL: "https://audio.example.com/episode.mp3"}, nil
}

// FailingSink returns a Sink whose Upload always returns err.
func FailingSink(err error) *Sink {
	return &Sink{
		UploadFunc: func(_ context.Context, _ collab.UploadRequest) (*collab.UploadResult, error) {
			return nil, err
		},
	}
}

// FailingTranscriptEngine returns a TranscriptEngine that always returns err.
func FailingTranscriptEngine(err error) *TranscriptEngine {
	return &TranscriptEngine{
		GenerateFunc: func(_ context.Context, _ collab.TranscriptRequest) (string, error) {
			return "", err
		},
	}
}

// FailingAudioEngine returns an AudioEngine that always returns err.
func FailingAudioEngine(err error) *AudioEngine {
	return &AudioEngine{
		SynthesizeFunc: func(_ context.Context, _ collab.SynthesizeRequest) (*collab.SynthesizeResult, error) {
			return nil, err
		},
	}
}

// Compile-time checks.
var (
	_ collab.Sink             = (*Sink)(nil)
	_ collab.TranscriptEngine = (*TranscriptEngine)(nil)
	_ collab.AudioEngine      = (*AudioEngine)(nil)
)
