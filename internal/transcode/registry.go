package transcode

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EncoderProcess is the part of a running encoder child the session layer
// drives. *ffmpeg.Process implements it.
type EncoderProcess interface {
	PID() int
	Done() <-chan struct{}
	Kill()
}

// Session is the state bound to one session id: the live encoder process,
// the scratch directory, the immutable segment plan and the current encoder
// cursor. A session can outlive several encoder generations.
type Session struct {
	ID         string
	ScratchDir string
	Plan       *SegmentPlan
	Decision   *Decision

	// StartSegment is the plan index the current encoder generation
	// numbers its output from.
	StartSegment int

	Process EncoderProcess

	timer      *time.Timer
	generation uint64
}

// MediaPlaylistPath returns the encoder's live playlist for this session.
func (s *Session) MediaPlaylistPath() string {
	return filepath.Join(s.ScratchDir, "media.m3u8")
}

// SegmentPath returns the on-disk path of segment n.
func (s *Session) SegmentPath(n int) string {
	return filepath.Join(s.ScratchDir, fmt.Sprintf("media%d.m4s", n))
}

// InitSegmentPath returns the on-disk path of the fMP4 init segment.
func (s *Session) InitSegmentPath() string {
	return filepath.Join(s.ScratchDir, "init.mp4")
}

// Registry is the process-wide session table. All lifecycle transitions for
// a session id are serialized under one mutex; the idle timer callback takes
// the same path as an explicit close, so close-during-fire is safe.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	timeout  time.Duration
	log      *slog.Logger
}

// NewRegistry creates a session registry with the given idle timeout.
func NewRegistry(timeout time.Duration, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		log:      log,
	}
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Register inserts the session, or replaces the encoder of an existing one,
// returning the canonical live session. On replace the old process is killed
// and the scratch directory is kept: a client reconnecting at a new position
// relocates the encoder without discarding segments already produced.
func (r *Registry) Register(session *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[session.ID]; ok {
		r.log.Info("session re-registered", slog.String("session", session.ID))
		existing.timer.Stop()
		if existing.Process != nil && existing.Process != session.Process {
			existing.Process.Kill()
		}
		existing.Process = session.Process
		existing.Plan = session.Plan
		existing.Decision = session.Decision
		existing.StartSegment = session.StartSegment
		existing.generation++
		r.armTimerLocked(existing)
		return existing
	}

	r.log.Info("session registered", slog.String("session", session.ID))
	r.sessions[session.ID] = session
	r.armTimerLocked(session)
	return session
}

func (r *Registry) armTimerLocked(session *Session) {
	id := session.ID
	gen := session.generation
	session.timer = time.AfterFunc(r.timeout, func() {
		r.expire(id, gen)
	})
}

func (r *Registry) expire(id string, generation uint64) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok || session.generation != generation {
		// Closed or superseded while the timer was firing.
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.log.Debug("session idle timeout reached", slog.String("session", id))
	r.Close(id)
}

// Touch resets the idle timer. It never revives a torn-down session.
func (r *Registry) Touch(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	session.timer.Stop()
	session.generation++
	r.armTimerLocked(session)
	return nil
}

// Close tears the session down: timer cancelled, encoder killed, scratch
// directory removed. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		r.log.Info("session already closed", slog.String("session", id))
		return
	}
	delete(r.sessions, id)
	session.timer.Stop()
	session.generation++
	r.mu.Unlock()

	r.log.Info("closing session", slog.String("session", id))
	if session.Process != nil {
		session.Process.Kill()
	}
	if session.ScratchDir != "" {
		if err := os.RemoveAll(session.ScratchDir); err != nil {
			r.log.Warn("failed to remove scratch directory",
				slog.String("session", id),
				slog.String("path", session.ScratchDir),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Shutdown closes every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
