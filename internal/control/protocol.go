// Package control exposes the daemon's runtime surface over a local TCP
// socket. The protocol is newline-delimited JSON: one request object per
// line, one response object per line. Unknown operations and malformed
// requests get an error response; the connection stays open.
package control

import (
	"time"

	"github.com/openpony/ponylog/internal/quota"
	"github.com/openpony/ponylog/internal/sched"
	"github.com/openpony/ponylog/internal/session"
	"github.com/openpony/ponylog/internal/stats"
	"github.com/openpony/ponylog/internal/telemetry"
)

// Operation names.
const (
	OpStatus        = "status"
	OpSnapshot      = "snapshot"
	OpStartSession  = "start-session"
	OpStopSession   = "stop-session"
	OpListSessions  = "list-sessions"
	OpDeleteSession = "delete-session"
	OpResetCounters = "reset-counters"
)

// Request is one client command.
type Request struct {
	Op string `json:"op"`

	// Name carries the session name hint for start-session and the
	// target file name for delete-session.
	Name string `json:"name,omitempty"`
}

// BufferStatus reports the sample ring.
type BufferStatus struct {
	Capacity   int     `json:"capacity"`
	Count      int     `json:"count"`
	UsageRatio float64 `json:"usage_ratio"`
	PushCount  int64   `json:"push_count"`
	PopCount   int64   `json:"pop_count"`
	DropCount  int64   `json:"drop_count"`
}

// SessionStatus reports the writer state.
type SessionStatus struct {
	Open   bool   `json:"open"`
	Name   string `json:"name,omitempty"`
	Frames int64  `json:"frames"`
	Blocks int64  `json:"blocks"`
	Bytes  int64  `json:"bytes"`

	// LastError is the storage fault that disabled the previous session,
	// when logging stopped without an operator stop-session.
	LastError string `json:"last_error,omitempty"`
}

// StorageStatus reports quota state.
type StorageStatus struct {
	UsagePct        float64 `json:"usage_pct"`
	Passes          int64   `json:"passes"`
	SessionsDeleted int64   `json:"sessions_deleted"`
	BytesFreed      int64   `json:"bytes_freed"`
}

// TaskStatus reports one scheduler task.
type TaskStatus struct {
	Name      string `json:"name"`
	PeriodMs  int64  `json:"period_ms"`
	Runs      int64  `json:"runs"`
	Errors    int64  `json:"errors"`
	Overruns  int64  `json:"overruns"`
	LastError string `json:"last_error,omitempty"`
}

// Status is the full daemon status report.
type Status struct {
	UptimeSec float64       `json:"uptime_sec"`
	Buffer    BufferStatus  `json:"buffer"`
	Session   SessionStatus `json:"session"`
	Storage   StorageStatus `json:"storage"`
	GForce    stats.Result  `json:"gforce"`
	Tasks     []TaskStatus  `json:"tasks"`
}

// SessionFile is one entry in a session listing.
type SessionFile struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Active  bool      `json:"active"`
}

// SessionResult reports a started or stopped session.
type SessionResult struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Frames   int64        `json:"frames,omitempty"`
	Blocks   int64        `json:"blocks,omitempty"`
	Bytes    int64        `json:"bytes,omitempty"`
	Duration float64      `json:"duration_sec,omitempty"`
	GForce   stats.Result `json:"gforce,omitempty"`
}

// Response is the reply to one request. Exactly one payload field is set
// on success, matching the operation.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Status   *Status             `json:"status,omitempty"`
	Snapshot *telemetry.Snapshot `json:"snapshot,omitempty"`
	Sessions []SessionFile       `json:"sessions,omitempty"`
	Session  *SessionResult      `json:"session,omitempty"`
}

func errorResponse(msg string) Response {
	return Response{Error: msg}
}

// taskStatuses converts scheduler stats to wire form.
func taskStatuses(ts []sched.TaskStats) []TaskStatus {
	out := make([]TaskStatus, 0, len(ts))
	for _, t := range ts {
		out = append(out, TaskStatus{
			Name:      t.Name,
			PeriodMs:  t.Period.Milliseconds(),
			Runs:      t.Runs,
			Errors:    t.Errors,
			Overruns:  t.Overruns,
			LastError: t.LastError,
		})
	}
	return out
}

// storageStatus converts quota stats to wire form.
func storageStatus(usage float64, qs quota.Stats) StorageStatus {
	return StorageStatus{
		UsagePct:        usage * 100,
		Passes:          qs.Passes,
		SessionsDeleted: qs.SessionsDeleted,
		BytesFreed:      qs.BytesFreed,
	}
}

// sessionFiles converts a directory listing to wire form.
func sessionFiles(infos []session.Info, active string) []SessionFile {
	out := make([]SessionFile, 0, len(infos))
	for _, info := range infos {
		out = append(out, SessionFile{
			Name:    info.Name,
			Size:    info.Size,
			ModTime: info.ModTime,
			Active:  info.Path == active,
		})
	}
	return out
}
