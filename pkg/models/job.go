// Package models contains shared data models used across the PodForge codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a podcast generation job.
type JobStatus string

const (
	JobStatusPending              JobStatus = "pending"
	JobStatusUploading            JobStatus = "uploading"
	JobStatusProcessingTranscript JobStatus = "processing_transcript"
	JobStatusProcessingAudio      JobStatus = "processing_audio"
	JobStatusComplete             JobStatus = "complete"
	JobStatusFailed               JobStatus = "failed"
	JobStatusCancelled            JobStatus = "cancelled"
)

// ResourceType identifies the kind of source a job converts.
type ResourceType string

const (
	ResourceTypeFile    ResourceType = "file"
	ResourceTypeYouTube ResourceType = "youtube"
	ResourceTypeWeb     ResourceType = "web"
)

// ParseResourceType validates a raw resource type string.
func ParseResourceType(s string) (ResourceType, bool) {
	switch ResourceType(s) {
	case ResourceTypeFile, ResourceTypeYouTube, ResourceTypeWeb:
		return ResourceType(s), true
	}
	return "", false
}

// Job tracks one podcast generation request. The API returns a job_id on
// POST /api/v1/podcasts; the client polls GET /api/v1/podcasts/{job_id}
// until the status is complete, failed, or cancelled.
//
// InputResourceURL is nil at creation for file inputs and is set once the
// upload stage finishes; for youtube/web inputs it is present immediately.
// ErrorMessage is set only on the transition into failed; ResultAudioURL
// only on the transition into complete.
type Job struct {
	JobID             uuid.UUID    `db:"job_id"              json:"job_id"`
	Status            JobStatus    `db:"status"              json:"status"`
	InputResourceType ResourceType `db:"input_resource_type" json:"input_resource_type"`
	InputResourceURL  *string      `db:"input_resource_url"  json:"input_resource_url,omitempty"`
	InputCollectionID string       `db:"input_collection_id" json:"input_collection_id"`
	ErrorMessage      *string      `db:"error_message"       json:"error_message,omitempty"`
	ResultAudioURL    *string      `db:"result_audio_url"    json:"result_audio_url,omitempty"`
	CreatedAt         time.Time    `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"          json:"updated_at"`
}

// validTransitions is the directed transition graph for job statuses.
// A job only ever moves forward; complete, failed, and cancelled have no
// outgoing edges. Uploading is reachable only for file inputs; url inputs
// go straight from pending to processing_transcript.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:              {JobStatusUploading, JobStatusProcessingTranscript, JobStatusCancelled},
	JobStatusUploading:            {JobStatusProcessingTranscript, JobStatusFailed, JobStatusCancelled},
	JobStatusProcessingTranscript: {JobStatusProcessingAudio, JobStatusFailed, JobStatusCancelled},
	JobStatusProcessingAudio:      {JobStatusComplete, JobStatusFailed, JobStatusCancelled},
	JobStatusComplete:             {},
	JobStatusFailed:               {},
	JobStatusCancelled:            {},
}

// KnownStatus reports whether s is one of the defined job statuses.
func KnownStatus(s JobStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition reports whether current -> next is an allowed status move.
func CanTransition(current, next JobStatus) bool {
	for _, allowed := range validTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which next is reachable.
// The store uses this to guard its atomic status update.
func TransitionSources(next JobStatus) []JobStatus {
	var sources []JobStatus
	for current, targets := range validTransitions {
		for _, t := range targets {
			if t == next {
				sources = append(sources, current)
			}
		}
	}
	return sources
}

// Terminal reports whether s has no outgoing transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed || s == JobStatusCancelled
}
