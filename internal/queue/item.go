// Package queue is the authoritative in-memory list of files being screened.
package queue

import (
	"time"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/cvfile"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusPolling   Status = "polling"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

const MessageQueued = "In queue..."

// transitions lists the legal edges of the item lifecycle.
var transitions = map[Status][]Status{
	StatusPending:   {StatusUploading},
	StatusUploading: {StatusPolling, StatusError},
	StatusPolling:   {StatusSuccess, StatusError},
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// InFlight reports whether a backend operation may still report on the item.
func (s Status) InFlight() bool {
	return s == StatusUploading || s == StatusPolling
}

// CanTransition reports whether from -> to is a lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is one file's journey through the pipeline.
type Item struct {
	ID          string
	File        *cvfile.File
	Status      Status
	CandidateID string
	Result      *api.Candidate
	Message     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileName is a nil-safe accessor used by logging and reports.
func (i Item) FileName() string {
	if i.File == nil {
		return ""
	}
	return i.File.Name
}

// Change is a partial update merged into an item. Zero fields are left untouched.
type Change struct {
	Status      Status
	Message     string
	CandidateID string
	Result      *api.Candidate
}

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event is delivered to observers after every mutation.
type Event struct {
	Kind EventKind
	Item Item
}
