package control

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/openpony/ponylog/config"
	"github.com/openpony/ponylog/internal/buffer"
	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/quota"
	"github.com/openpony/ponylog/internal/sched"
	"github.com/openpony/ponylog/internal/session"
	"github.com/openpony/ponylog/internal/stats"
	"github.com/openpony/ponylog/internal/telemetry"
)

var log = logging.Component("control")

// sessionLog returns a logger scoped to one session file, so every line
// about that session carries its name.
func sessionLog(name string) *slog.Logger {
	return logging.WithContext(logging.ContextWithSession(context.Background(), name))
}

// =============================================================================
// Server Configuration
// =============================================================================

// Deps is the daemon state the control surface operates on.
type Deps struct {
	Ring   *buffer.Ring
	Cell   *telemetry.Cell
	Writer *session.Writer
	Quota  *quota.Manager
	GForce *stats.GForce
	Runner *sched.Runner

	// Dir is the session directory, for listings and deletion.
	Dir string
}

// Options configures the control server.
type Options struct {
	// Address to listen on. Default is the loopback control port.
	Address string

	// MaxRequestSize bounds one request line in bytes.
	MaxRequestSize int
}

// DefaultOptions returns the default control server options.
func DefaultOptions() Options {
	return Options{
		Address:        config.DefaultControlAddress,
		MaxRequestSize: config.DefaultMaxRequestSize,
	}
}

// =============================================================================
// Server
// =============================================================================

// Server serves the control protocol.
type Server struct {
	opts Options
	deps Deps

	started  time.Time
	listener net.Listener

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a control server.
func NewServer(opts Options, deps Deps) *Server {
	if opts.Address == "" {
		opts.Address = config.DefaultControlAddress
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = config.DefaultMaxRequestSize
	}

	return &Server{
		opts:     opts,
		deps:     deps,
		started:  time.Now(),
		shutdown: make(chan struct{}),
	}
}

// Run listens and serves until Shutdown.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	s.listener = ln
	log.Info("control server listening", "address", s.opts.Address)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				log.Error("accept error", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Addr returns the bound listen address, useful when the configured port
// is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Address
	}
	return s.listener.Addr().String()
}

// Shutdown stops the listener and waits for open connections.
func (s *Server) Shutdown() {
	close(s.shutdown)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	log.Info("control server stopped")
}

// =============================================================================
// Connection Handling
// =============================================================================

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log.Debug("control connection", "remote", remote)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), s.opts.MaxRequestSize)
	encoder := json.NewEncoder(conn)

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				log.Debug("control read error", "remote", remote, "error", err)
				// Oversized or broken input; the stream cannot be resynced.
				encoder.Encode(errorResponse(fmt.Sprintf("read request: %v", err)))
			}
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			encoder.Encode(errorResponse(fmt.Sprintf("parse request: %v", err)))
			continue
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			log.Debug("control write error", "remote", remote, "error", err)
			return
		}
	}
}

// =============================================================================
// Dispatch
// =============================================================================

func (s *Server) dispatch(req Request) Response {
	switch req.Op {
	case OpStatus:
		return s.handleStatus()
	case OpSnapshot:
		return s.handleSnapshot()
	case OpStartSession:
		return s.handleStartSession(req.Name)
	case OpStopSession:
		return s.handleStopSession()
	case OpListSessions:
		return s.handleListSessions()
	case OpDeleteSession:
		return s.handleDeleteSession(req.Name)
	case OpResetCounters:
		return s.handleResetCounters()
	default:
		return errorResponse(fmt.Sprintf("unknown operation %q", req.Op))
	}
}

func (s *Server) handleStatus() Response {
	rs := s.deps.Ring.Stats()
	frames, blocks, bytes := s.deps.Writer.Counters()
	name, open := s.deps.Writer.Active()

	status := &Status{
		UptimeSec: time.Since(s.started).Seconds(),
		Buffer: BufferStatus{
			Capacity:   rs.Capacity,
			Count:      rs.Count,
			UsageRatio: rs.UsageRatio,
			PushCount:  rs.PushCount,
			PopCount:   rs.PopCount,
			DropCount:  rs.DropCount,
		},
		Session: SessionStatus{
			Open:   open,
			Frames: int64(frames),
			Blocks: int64(blocks),
			Bytes:  bytes,
		},
		GForce: s.deps.GForce.Result(),
	}
	if open {
		status.Session.Name = filepath.Base(name)
	}
	if err := s.deps.Writer.Err(); err != nil {
		status.Session.LastError = err.Error()
	}

	usage, err := s.deps.Quota.UsagePercent()
	if err != nil {
		log.Warn("usage check failed", "error", err)
	}
	status.Storage = storageStatus(usage, s.deps.Quota.Stats())

	if s.deps.Runner != nil {
		status.Tasks = taskStatuses(s.deps.Runner.Stats())
	}

	return Response{OK: true, Status: status}
}

func (s *Server) handleSnapshot() Response {
	snap, ok := s.deps.Cell.TrySnapshot()
	if !ok {
		// Publisher holds the cell; fall back to the blocking read.
		if snap, ok = s.deps.Cell.Snapshot(); !ok {
			return errorResponse("no snapshot published yet")
		}
	}
	return Response{OK: true, Snapshot: &snap}
}

func (s *Server) handleStartSession(nameHint string) Response {
	path, err := s.deps.Writer.Start(nameHint)
	if err != nil {
		return errorResponse(err.Error())
	}

	// Aggregates are per-session.
	s.deps.GForce.Reset()

	name := filepath.Base(path)
	sessionLog(name).Info("session started via control")
	return Response{OK: true, Session: &SessionResult{
		Name: name,
		Path: path,
	}}
}

func (s *Server) handleStopSession() Response {
	summary, err := s.deps.Writer.Stop()
	if err != nil {
		return errorResponse(err.Error())
	}

	return Response{OK: true, Session: &SessionResult{
		Name:     summary.Name,
		Path:     summary.Path,
		Frames:   int64(summary.Frames),
		Blocks:   int64(summary.Blocks),
		Bytes:    summary.Bytes,
		Duration: summary.Duration.Seconds(),
		GForce:   s.deps.GForce.Result(),
	}}
}

func (s *Server) handleListSessions() Response {
	infos, err := session.List(s.deps.Dir)
	if err != nil {
		return errorResponse(err.Error())
	}
	active, _ := s.deps.Writer.Active()
	return Response{OK: true, Sessions: sessionFiles(infos, active)}
}

func (s *Server) handleDeleteSession(name string) Response {
	if name == "" {
		return errorResponse("delete-session requires a name")
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return errorResponse(fmt.Sprintf("invalid session name %q", name))
	}

	path := filepath.Join(s.deps.Dir, name)
	if active, open := s.deps.Writer.Active(); open && active == path {
		return errorResponse("session is active; stop it first")
	}

	if err := session.Remove(path); err != nil {
		return errorResponse(err.Error())
	}
	sessionLog(name).Info("session deleted via control")
	return Response{OK: true}
}

func (s *Server) handleResetCounters() Response {
	s.deps.Ring.ResetCounters()
	return Response{OK: true}
}
