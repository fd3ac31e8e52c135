package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// dialogueSchema is the shape the transcript engine is asked to produce:
// alternating two-speaker dialogue that the audio engine understands.
const dialogueSchema = `<Person1>[Speaker 1's dialogue here]</Person1>
<Person2>[Speaker 2's dialogue here]</Person2>
<Person1>[Speaker 1's dialogue here]</Person1>
<Person2>[Speaker 2's dialogue here]</Person2>`

const dialogueRules = "Add opening remarks, replace the text with the information from the resource provided. Emulate a real conversation between two people. Add closing remarks."

const transcriptQuery = "Generate a comprehensive podcast episode from the resource provided"

// WetrocloudEngine implements TranscriptEngine against the Wetrocloud RAG API.
// Generating a transcript is a three-call sequence: create the collection,
// insert the resource, then query the collection with the dialogue schema.
type WetrocloudEngine struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWetrocloudEngine creates a new transcript engine client.
func NewWetrocloudEngine(baseURL, apiKey string, timeout time.Duration) *WetrocloudEngine {
	return &WetrocloudEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *WetrocloudEngine) Generate(ctx context.Context, req TranscriptRequest) (string, error) {
	// Create is idempotent on the Wetrocloud side; an existing collection is
	// reused, which is what lets retried jobs share one collection id.
	if err := e.post(ctx, "/v1/collection/create/", map[string]any{
		"collection_id": req.CollectionID,
	}, nil); err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}

	if err := e.post(ctx, "/v1/resource/insert/", map[string]any{
		"collection_id": req.CollectionID,
		"resource":      req.ResourceURL,
		"type":          string(req.ResourceType),
	}, nil); err != nil {
		return "", fmt.Errorf("insert resource: %w", err)
	}

	var queryResp struct {
		Response json.RawMessage `json:"response"`
	}
	if err := e.post(ctx, "/v1/collection/query/", map[string]any{
		"collection_id":     req.CollectionID,
		"request_query":     transcriptQuery,
		"json_schema":       []string{dialogueSchema},
		"json_schema_rules": dialogueRules,
	}, &queryResp); err != nil {
		return "", fmt.Errorf("query collection: %w", err)
	}

	text, err := decodeTranscript(queryResp.Response)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrRejected)
	}
	return text, nil
}

// decodeTranscript accepts either a plain string or a list of segments.
func decodeTranscript(raw json.RawMessage) (string, error) {
	var segments []string
	if err := json.Unmarshal(raw, &segments); err == nil {
		return strings.Join(segments, "\n"), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	return "", fmt.Errorf("%w: unexpected transcript payload", ErrRejected)
}

func (e *WetrocloudEngine) post(ctx context.Context, path string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Compile-time check that WetrocloudEngine implements TranscriptEngine.
var _ TranscriptEngine = (*WetrocloudEngine)(nil)
