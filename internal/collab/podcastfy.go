package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// PodcastfyEngine implements AudioEngine against the Podcastfy synthesis
// service: it posts the transcript as a file and gets back the public URL
// of the rendered audio.
type PodcastfyEngine struct {
	baseURL string
	client  *http.Client
}

// NewPodcastfyEngine creates a new audio engine client.
func NewPodcastfyEngine(baseURL string, timeout time.Duration) *PodcastfyEngine {
	return &PodcastfyEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *PodcastfyEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesizeResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("transcript_file", "transcript.txt")
	if err != nil {
		return nil, fmt.Errorf("building synthesis body: %w", err)
	}
	if _, err := part.Write([]byte(req.Transcript)); err != nil {
		return nil, fmt.Errorf("building synthesis body: %w", err)
	}
	if err := w.WriteField("collection_id", req.CollectionID); err != nil {
		return nil, fmt.Errorf("building synthesis body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building synthesis body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/generate-audio", &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: audio engine returned status %d", ErrRejected, resp.StatusCode)
	}

	var audioResp struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&audioResp); err != nil {
		return nil, fmt.Errorf("decoding synthesis response: %w", err)
	}
	if audioResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrRejected, audioResp.Error)
	}
	if audioResp.URL == "" {
		return nil, fmt.Errorf("%w: missing audio url", ErrRejected)
	}

	return &SynthesizeResult{URL: audioResp.URL}, nil
}

// Compile-time check that PodcastfyEngine implements AudioEngine.
var _ AudioEngine = (*PodcastfyEngine)(nil)
