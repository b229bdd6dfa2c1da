package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vodarr/vodarr/internal/config"
	"github.com/vodarr/vodarr/internal/ffmpeg"
)

// launchFunc starts an encoder child process.
type launchFunc func(log *slog.Logger, binary string, args []string, opts ffmpeg.ProcessOptions) (EncoderProcess, error)

func launchProcess(log *slog.Logger, binary string, args []string, opts ffmpeg.ProcessOptions) (EncoderProcess, error) {
	return ffmpeg.StartProcess(log, binary, args, opts)
}

// Engine coordinates capability negotiation, segment planning, encoder
// launches and the session registry. Handlers talk to the engine; the engine
// owns every encoder it starts.
type Engine struct {
	cfg      *config.Config
	bins     ffmpeg.Binaries
	registry *Registry
	launch   launchFunc
	log      *slog.Logger
}

// NewEngine creates a transcode engine.
func NewEngine(cfg *config.Config, bins ffmpeg.Binaries, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		bins:     bins,
		registry: NewRegistry(cfg.Transcode.SessionTimeout, log),
		launch:   launchProcess,
		log:      log,
	}
}

// Registry exposes the session registry for keep-alive and close endpoints.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Prepare negotiates the HLS decision and builds the segment plan for a
// source. The plan is deterministic in the settings and metadata, so every
// caller sees the same indices for the same session.
func (e *Engine) Prepare(settings *Settings, meta *ffmpeg.ProbeResult) (*Decision, *SegmentPlan, error) {
	hls := settings.ForHLS()
	d, err := Negotiate(e.cfg.FFmpeg, hls, meta)
	if err != nil {
		return nil, nil, err
	}
	plan := NewPlan(d.CanCopyVideo, meta.Keyframes, meta.DurationSeconds())
	return d, plan, nil
}

// MainPlaylist renders the master playlist for a source.
func (e *Engine) MainPlaylist(settings *Settings, meta *ffmpeg.ProbeResult) (string, error) {
	d, _, err := e.Prepare(settings, meta)
	if err != nil {
		return "", err
	}
	return RenderMainPlaylist(d, settings), nil
}

// MediaPlaylist renders the media playlist for a source, cold-starting a
// session positioned at the requested start time when none is live.
func (e *Engine) MediaPlaylist(ctx context.Context, settings *Settings, meta *ffmpeg.ProbeResult) (string, error) {
	d, plan, err := e.Prepare(settings, meta)
	if err != nil {
		return "", err
	}

	if _, ok := e.registry.Get(settings.Session); !ok {
		if _, err := e.startSession(ctx, settings, meta, d, plan, -1); err != nil {
			return "", err
		}
	}

	return RenderMediaPlaylist(plan, settings), nil
}

// Segment resolves the on-disk path of segment n, waiting for an in-flight
// encoder or launching one positioned at n as needed.
func (e *Engine) Segment(ctx context.Context, settings *Settings, meta *ffmpeg.ProbeResult, n int) (string, error) {
	poll := e.cfg.Transcode.SegmentPollInterval
	wait := e.cfg.Transcode.SegmentWaitTimeout
	threshold := e.cfg.Transcode.RestartThreshold

	if session, ok := e.registry.Get(settings.Session); ok {
		playlist := session.MediaPlaylistPath()
		if SegmentReady(playlist, n) {
			return session.SegmentPath(n), nil
		}

		first, last, found, err := FirstLastTranscodedSegment(playlist)
		if err != nil {
			return "", err
		}
		if found && withinEncoderWindow(first, last, threshold, n) {
			e.log.Debug("waiting for in-flight segment",
				slog.String("session", settings.Session),
				slog.Int("segment", n),
				slog.Int("first", first),
				slog.Int("last", last),
			)
			if err := WaitForSegment(ctx, playlist, n, poll, wait); err == nil {
				return session.SegmentPath(n), nil
			}
		}
		e.log.Debug("segment outside encoder window, restarting",
			slog.String("session", settings.Session),
			slog.Int("segment", n),
		)
	}

	d, plan, err := e.Prepare(settings, meta)
	if err != nil {
		return "", err
	}
	session, err := e.startSession(ctx, settings, meta, d, plan, n)
	if err != nil {
		return "", err
	}

	if err := WaitForSegment(ctx, session.MediaPlaylistPath(), n, poll, wait); err != nil {
		return "", err
	}
	return session.SegmentPath(n), nil
}

// InitSegment returns the on-disk path of the session's init segment.
func (e *Engine) InitSegment(sessionID string) (string, error) {
	session, ok := e.registry.Get(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return session.InitSegmentPath(), nil
}

// KeepAlive extends the session's idle window.
func (e *Engine) KeepAlive(sessionID string) error {
	return e.registry.Touch(sessionID)
}

// CloseSession force-tears a session down.
func (e *Engine) CloseSession(sessionID string) {
	e.registry.Close(sessionID)
}

// Shutdown closes every live session.
func (e *Engine) Shutdown() {
	e.registry.Shutdown()
}

// startSession launches an encoder generation for the session and waits for
// it to produce media. startSegment < 0 derives the cursor from the
// descriptor's start_segment or start_time.
func (e *Engine) startSession(ctx context.Context, settings *Settings, meta *ffmpeg.ProbeResult, d *Decision, plan *SegmentPlan, startSegment int) (*Session, error) {
	if startSegment < 0 {
		if settings.StartSegment != nil {
			startSegment = *settings.StartSegment
		} else {
			startSegment = plan.StartSegmentFromStartTime(settings.StartTime)
		}
	}
	startTime := plan.StartTimeFromSegment(startSegment)

	scratchDir := filepath.Join(e.cfg.Transcode.Dir, settings.Session)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating scratch dir: %v", ErrEncoderLaunch, err)
	}

	job := &EncoderJob{
		Settings:     settings.ForHLS(),
		Decision:     d,
		Meta:         meta,
		Plan:         plan,
		StartSegment: startSegment,
		StartTime:    startTime,
		ScratchDir:   scratchDir,
	}
	args := BuildEncoderArgs(e.cfg.FFmpeg, job)

	log := e.log.With(slog.String("session", settings.Session))
	log.Debug("starting encoder",
		slog.Int("start_segment", startSegment),
		slog.Float64("start_time", startTime),
	)

	proc, err := e.launch(log, e.bins.FFmpeg, args, ffmpeg.ProcessOptions{
		Env:       []string{ffreportEnv(scratchDir, settings.Session, e.cfg.FFmpeg.LogLevel)},
		LogOutput: e.cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderLaunch, err)
	}

	session := e.registry.Register(&Session{
		ID:           settings.Session,
		ScratchDir:   scratchDir,
		Plan:         plan,
		Decision:     d,
		StartSegment: startSegment,
		Process:      proc,
	})

	if e.cfg.Debug {
		go e.monitorProcess(proc)
	}

	if err := WaitForMedia(ctx, session.MediaPlaylistPath(), e.cfg.StartupTimeout()); err != nil {
		log.Error("encoder produced no media inside the startup window")
		proc.Kill()
		return nil, err
	}

	return session, nil
}

// withinEncoderWindow reports whether segment n lies in the range the
// running encoder will reach on its own: from the first segment it produced
// up to threshold segments past the last. Anything outside means a restart
// positioned at n.
func withinEncoderWindow(first, last, threshold, n int) bool {
	return first <= n && n <= last+threshold
}

func (e *Engine) monitorProcess(proc EncoderProcess) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-proc.Done()
		cancel()
	}()
	ffmpeg.NewMonitor(e.log, proc.PID(), 0).Run(ctx)
}

func ffreportEnv(scratchDir, session, loglevel string) string {
	logPath := filepath.Join(scratchDir, fmt.Sprintf("ffmpeg_%s_transcode.log", session))
	return fmt.Sprintf("FFREPORT=file='%s':level=%s", logPath, loglevel)
}
