// Package pipeline drives a single job through its stages to a terminal
// status, calling the stage collaborators in sequence and persisting every
// transition through the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"podforge/internal/cache"
	"podforge/internal/collab"
	"podforge/internal/store"
	"podforge/pkg/models"
)

// Stage tags recorded on failed jobs so a status query can tell which
// collaborator broke.
const (
	stageUploading  = "uploading"
	stageTranscript = "processing_transcript"
	stageAudio      = "processing_audio"
)

const statusCacheTTL = 30 * time.Minute

// Request carries everything the orchestrator needs to run one job.
// ResourceURL is set for youtube/web inputs; the File* fields only for
// file inputs.
type Request struct {
	JobID           uuid.UUID
	ResourceType    models.ResourceType
	CollectionID    string
	ResourceURL     string
	FileName        string
	FileContentType string
	FileContent     []byte
}

// Orchestrator runs jobs as detached background tasks. At most one task
// drives a given job; cancellation is cooperative and only observed at the
// checkpoints between stages.
type Orchestrator struct {
	store       store.Store
	cache       cache.Cache
	sink        collab.Sink
	transcripts collab.TranscriptEngine
	audio       collab.AudioEngine

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// New creates an Orchestrator.
func New(st store.Store, ca cache.Cache, sink collab.Sink, tr collab.TranscriptEngine, au collab.AudioEngine) *Orchestrator {
	return &Orchestrator{
		store:       st,
		cache:       ca,
		sink:        sink,
		transcripts: tr,
		audio:       au,
		running:     make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start dispatches the job in a background goroutine and returns
// immediately. A panic anywhere in the run is recovered and lands the job
// in failed; one job's fault never reaches another job or the caller.
func (o *Orchestrator) Start(req Request) {
	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.running[req.JobID] = cancel
	o.mu.Unlock()

	go func() {
		defer o.release(req.JobID, cancel)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in pipeline run", "error", r, "job_id", req.JobID)
				o.fail(context.Background(), req.JobID, "pipeline", fmt.Errorf("panic: %v", r))
			}
		}()
		o.run(ctx, req)
	}()
}

// Cancel requests cooperative cancellation of a running job and reports
// whether a task was found. The flag is only observed at stage boundaries;
// a collaborator call already in flight is not interrupted.
func (o *Orchestrator) Cancel(jobID uuid.UUID) bool {
	o.mu.Lock()
	cancel, ok := o.running[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// release frees the cancellation registry entry on every exit path.
func (o *Orchestrator) release(jobID uuid.UUID, cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	delete(o.running, jobID)
	o.mu.Unlock()
}

// run walks the job through its stages. Persistence writes and collaborator
// calls use a background context: cancellation must never prevent the
// terminal status from being written, and in-flight collaborator calls are
// not interrupted, only observed between stages via ctx.
func (o *Orchestrator) run(ctx context.Context, req Request) {
	bg := context.Background()
	jobID := req.JobID
	slog.Info("pipeline started", "job_id", jobID, "resource_type", req.ResourceType)

	if req.ResourceType == models.ResourceTypeFile {
		if !o.transition(bg, jobID, models.JobStatusUploading) {
			return
		}
		res, err := o.sink.Upload(bg, collab.UploadRequest{
			FileName:     req.FileName,
			ContentType:  req.FileContentType,
			Content:      req.FileContent,
			CollectionID: req.CollectionID,
		})
		req.FileContent = nil // buffered payload is no longer needed
		if err != nil {
			o.fail(bg, jobID, stageUploading, err)
			return
		}
		if !o.transition(bg, jobID, models.JobStatusProcessingTranscript, store.WithInputResourceURL(res.URL)) {
			return
		}
	} else {
		// The resource reference was already supplied at submission.
		if !o.transition(bg, jobID, models.JobStatusProcessingTranscript) {
			return
		}
	}

	if cancelled(ctx) {
		o.cancel(bg, jobID)
		return
	}

	// Re-read the record rather than threading the upload result forward:
	// the persisted input_resource_url is the authoritative reference.
	job, err := o.store.GetJob(bg, jobID)
	if err != nil {
		slog.Error("job vanished mid-pipeline", "job_id", jobID, "error", err)
		return
	}
	resourceURL := ""
	if job.InputResourceURL != nil {
		resourceURL = *job.InputResourceURL
	}

	transcript, err := o.transcripts.Generate(bg, collab.TranscriptRequest{
		CollectionID: req.CollectionID,
		ResourceURL:  resourceURL,
		ResourceType: req.ResourceType,
	})
	if err != nil {
		o.fail(bg, jobID, stageTranscript, err)
		return
	}

	if cancelled(ctx) {
		o.cancel(bg, jobID)
		return
	}
	if !o.transition(bg, jobID, models.JobStatusProcessingAudio) {
		return
	}

	audioRes, err := o.audio.Synthesize(bg, collab.SynthesizeRequest{
		Transcript:   transcript,
		CollectionID: req.CollectionID,
	})
	if err != nil {
		o.fail(bg, jobID, stageAudio, err)
		return
	}

	// Last checkpoint: if cancellation won the race, complete must not land.
	if cancelled(ctx) {
		o.cancel(bg, jobID)
		return
	}
	if o.transition(bg, jobID, models.JobStatusComplete, store.WithResultAudioURL(audioRes.URL)) {
		slog.Info("pipeline complete", "job_id", jobID, "audio_url", audioRes.URL)
	}
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// transition moves the job to status and refreshes the cached status.
// A write rejected because the job is already terminal is not an error;
// it means another writer (cancellation) got there first.
func (o *Orchestrator) transition(ctx context.Context, jobID uuid.UUID, status models.JobStatus, opts ...store.JobUpdateOption) bool {
	if _, err := o.store.UpdateJob(ctx, jobID, status, opts...); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			slog.Info("skipping status write, job already moved on", "job_id", jobID, "target", status)
		} else {
			slog.Error("status update failed", "job_id", jobID, "target", status, "error", err)
		}
		return false
	}
	_ = o.cache.SetJobStatus(ctx, jobID, status, statusCacheTTL)
	return true
}

func (o *Orchestrator) cancel(ctx context.Context, jobID uuid.UUID) {
	if o.transition(ctx, jobID, models.JobStatusCancelled) {
		slog.Info("pipeline cancelled", "job_id", jobID)
	}
}

func (o *Orchestrator) fail(ctx context.Context, jobID uuid.UUID, stage string, err error) {
	msg := fmt.Sprintf("%s: %v", stage, err)
	slog.Error("pipeline stage failed", "job_id", jobID, "stage", stage, "error", err)
	o.transition(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg))
}
