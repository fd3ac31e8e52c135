package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// HTTPSink implements Sink against the external file upload service.
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSink creates a new upload sink client.
func NewHTTPSink(baseURL string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	hdr.Set("Content-Type", req.ContentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}
	if _, err := part.Write(req.Content); err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}
	if err := w.WriteField("collection_id", req.CollectionID); err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/upload/", &body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: upload sink returned status %d", ErrRejected, resp.StatusCode)
	}

	var uploadResp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	if !uploadResp.Success || uploadResp.URL == "" {
		return nil, fmt.Errorf("%w: upload sink reported failure", ErrRejected)
	}

	return &UploadResult{URL: uploadResp.URL}, nil
}

// Compile-time check that HTTPSink implements Sink.
var _ Sink = (*HTTPSink)(nil)
