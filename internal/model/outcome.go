package model

import "time"

// Reason classifies why an import item did not succeed.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonRecursiveImport Reason = "recursive_import"
	ReasonAlreadyExists   Reason = "already_exists"
	ReasonCopyFailed      Reason = "copy_failed"
)

// State is the lifecycle position of a single import item.
type State string

const (
	StatePending   State = "pending"
	StateRejected  State = "rejected"
	StateCopying   State = "copying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// ImportRequest is one user action: copy Sources into TargetDir.
// Sources may contain duplicates; each is processed on its own.
type ImportRequest struct {
	TargetDir string   `json:"target_dir"`
	Sources   []string `json:"sources"`
}

// ImportOutcome is the result for one requested source.
type ImportOutcome struct {
	SourcePath string `json:"source_path"`
	DestPath   string `json:"dest_path,omitempty"`
	Success    bool   `json:"success"`
	Reason     Reason `json:"reason,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Files      int    `json:"files,omitempty"` // regular files and symlinks
	Links      int    `json:"links,omitempty"` // symlinks recreated as links
	Dirs       int    `json:"dirs,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`

	// Planned is set for dry-run outcomes that passed every check.
	Planned bool `json:"planned,omitempty"`

	Err error `json:"-"`
}

// State derives the terminal state of the outcome.
func (o ImportOutcome) State() State {
	switch {
	case o.Success:
		return StateSucceeded
	case o.Planned:
		return StatePending
	case o.Reason == ReasonRecursiveImport, o.Reason == ReasonAlreadyExists:
		return StateRejected
	case o.Reason == ReasonCopyFailed:
		return StateFailed
	default:
		return StatePending
	}
}

// Selection is what a source selector hands to the engine.
type Selection struct {
	Cancelled bool     `json:"cancelled"`
	Paths     []string `json:"paths,omitempty"`
}

// BatchRecord is a finished batch as stored by the history journal.
type BatchRecord struct {
	ID         string          `json:"id"`
	TargetDir  string          `json:"target_dir"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcomes   []ImportOutcome `json:"outcomes"`
}

// Succeeded counts successful outcomes.
func (b *BatchRecord) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed counts outcomes that did not succeed.
func (b *BatchRecord) Failed() int {
	return len(b.Outcomes) - b.Succeeded()
}

// TotalBytes sums the bytes copied by successful outcomes.
func (b *BatchRecord) TotalBytes() int64 {
	var total int64
	for _, o := range b.Outcomes {
		if o.Success {
			total += o.Bytes
		}
	}
	return total
}
