package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/observability"
)

// RecorderState is the position of the audio capture state machine.
type RecorderState string

const (
	RecorderIdle      RecorderState = "idle"
	RecorderRecording RecorderState = "recording"
	RecorderStopping  RecorderState = "stopping"
)

const (
	defaultMaxRecording = 30 * time.Second
	defaultMinRecording = time.Second
	defaultRecorderTick = time.Second
	defaultAudioMime    = "audio/webm"
)

// RecorderConfig bounds a recording. Tick is the countdown step; each tick
// removes one second from the remaining budget.
type RecorderConfig struct {
	MaxDuration time.Duration
	MinDuration time.Duration
	Tick        time.Duration
}

// AudioSink receives finalized recordings as AUDIO attachments.
type AudioSink interface {
	SendAttachment(ctx context.Context, file File, kind Kind) (Message, error)
}

// AudioAsset is a finalized recording.
type AudioAsset struct {
	Data     []byte
	Duration time.Duration
	MimeType string
}

// File names the asset for upload.
func (a AudioAsset) File(now time.Time) File {
	ext := ".webm"
	if mime := mimetype.Lookup(a.MimeType); mime != nil {
		ext = mime.Extension()
	}
	return File{
		Name:        fmt.Sprintf("voice-%d%s", now.Unix(), ext),
		ContentType: a.MimeType,
		Data:        a.Data,
	}
}

// Recorder captures one voice message at a time. The microphone is owned for
// the duration of a recording and closed on every exit from RECORDING.
type Recorder struct {
	mic      Microphone
	sink     AudioSink
	notifier Notifier
	logger   zerolog.Logger
	cfg      RecorderConfig
	now      func() time.Time

	mu       sync.Mutex
	state    RecorderState
	starting bool
	current  *recording
}

type recording struct {
	ctx       context.Context
	capture   Capture
	startedAt time.Time
	remaining int
	chunks    [][]byte
	duration  time.Duration
	full      bool
	stop      chan struct{}
	done      chan struct{}
}

// NewRecorder constructs an idle recorder.
func NewRecorder(mic Microphone, sink AudioSink, notifier Notifier, cfg RecorderConfig, logger zerolog.Logger) *Recorder {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = defaultMaxRecording
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = defaultMinRecording
	}
	if cfg.MinDuration > cfg.MaxDuration {
		cfg.MinDuration = cfg.MaxDuration
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultRecorderTick
	}

	return &Recorder{
		mic:      mic,
		sink:     sink,
		notifier: notifierOrNop(notifier),
		logger:   logger.With().Str("component", "chat_recorder").Logger(),
		cfg:      cfg,
		now:      time.Now,
		state:    RecorderIdle,
	}
}

// State returns the current machine state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Remaining returns the seconds left before the forced stop.
func (r *Recorder) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return 0
	}
	return r.current.remaining
}

// Start acquires the microphone and begins the countdown. Only valid from
// IDLE. Cancelling ctx abandons the recording without uploading it.
func (r *Recorder) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if r.state != RecorderIdle || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.starting = true
	r.mu.Unlock()

	capture, err := r.mic.Open(ctx)

	r.mu.Lock()
	r.starting = false
	if err != nil {
		r.mu.Unlock()
		if !errors.Is(err, ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		observability.EngineRecordings().WithLabelValues("permission_denied").Inc()
		r.notifier.Notify(Notice{Code: NoticePermissionDenied, Message: "microphone access was denied", Err: err})
		return err
	}

	rec := &recording{
		ctx:       ctx,
		capture:   capture,
		startedAt: r.now(),
		remaining: int(r.cfg.MaxDuration / time.Second),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if rec.remaining <= 0 {
		rec.remaining = 1
	}
	r.current = rec
	r.state = RecorderRecording
	r.mu.Unlock()

	r.logger.Debug().Int("remaining", rec.remaining).Msg("recording started")
	go r.run(rec)
	return nil
}

// Stop finalizes the recording and hands it to the sink. Only valid from
// RECORDING. The machine is IDLE again when Stop returns, whatever the
// upload outcome.
func (r *Recorder) Stop(ctx context.Context) (AudioAsset, error) {
	rec, ok := r.claim(nil)
	if !ok {
		return AudioAsset{}, ErrNotRecording
	}

	close(rec.stop)
	<-rec.done

	if ctx == nil {
		ctx = context.Background()
	}
	return r.finalize(ctx, rec, false)
}

func (r *Recorder) run(rec *recording) {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	chunks := rec.capture.Chunks()
	for {
		select {
		case <-rec.stop:
			close(rec.done)
			return
		case <-rec.ctx.Done():
			if _, ok := r.claim(rec); ok {
				close(rec.done)
				r.abandon(rec)
				return
			}
		case chunk, open := <-chunks:
			if !open {
				chunks = nil
				if _, ok := r.claim(rec); ok {
					close(rec.done)
					_, _ = r.finalize(rec.ctx, rec, false)
					return
				}
				continue
			}
			rec.add(chunk, r.cfg.MaxDuration)
			if !rec.full {
				continue
			}
			if _, ok := r.claim(rec); ok {
				close(rec.done)
				_, _ = r.finalize(rec.ctx, rec, true)
				return
			}
		case <-ticker.C:
			if !r.countdown(rec) {
				continue
			}
			if _, ok := r.claim(rec); ok {
				close(rec.done)
				_, _ = r.finalize(rec.ctx, rec, true)
				return
			}
		}
	}
}

// claim moves the active recording from RECORDING to STOPPING. When want is
// set it only succeeds for that recording.
func (r *Recorder) claim(want *recording) (*recording, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording || r.current == nil {
		return nil, false
	}
	if want != nil && r.current != want {
		return nil, false
	}
	r.state = RecorderStopping
	return r.current, true
}

// countdown removes one second and reports whether the budget is spent.
func (r *Recorder) countdown(rec *recording) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != rec || r.state != RecorderRecording {
		return false
	}
	rec.remaining--
	return rec.remaining <= 0
}

func (r *Recorder) finalize(ctx context.Context, rec *recording, forced bool) (AudioAsset, error) {
	defer r.reset(rec)
	r.release(rec)

	if forced {
		r.notifier.Notify(Notice{Code: NoticeMaxLengthReached, Message: "maximum recording length reached"})
	}

	asset := rec.asset(r.cfg.MaxDuration, r.now().Sub(rec.startedAt), rec.capture.MimeType())
	if len(asset.Data) == 0 || asset.Duration < r.cfg.MinDuration {
		observability.EngineRecordings().WithLabelValues("too_short").Inc()
		r.notifier.Notify(Notice{Code: NoticeRecordingShort, Message: "recording too short", Err: ErrRecordingTooShort})
		return AudioAsset{}, ErrRecordingTooShort
	}

	outcome := "completed"
	if forced {
		outcome = "max_length"
	}
	observability.EngineRecordings().WithLabelValues(outcome).Inc()

	if r.sink != nil {
		// upload failures are surfaced by the attachment lifecycle
		if _, err := r.sink.SendAttachment(ctx, asset.File(r.now()), KindAudio); err != nil {
			r.logger.Warn().Err(err).Dur("duration", asset.Duration).Msg("voice message was not sent")
		}
	}

	return asset, nil
}

func (r *Recorder) abandon(rec *recording) {
	defer r.reset(rec)
	r.release(rec)
	observability.EngineRecordings().WithLabelValues("abandoned").Inc()
	r.logger.Debug().Msg("recording abandoned")
}

func (r *Recorder) release(rec *recording) {
	if err := rec.capture.Close(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to release microphone")
	}
}

func (r *Recorder) reset(rec *recording) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == rec {
		r.current = nil
		r.state = RecorderIdle
	}
}

// add appends a chunk, truncating at max so a recording never exceeds it.
func (rec *recording) add(chunk AudioChunk, max time.Duration) {
	if rec.full || len(chunk.Data) == 0 {
		return
	}

	if chunk.Duration > 0 && rec.duration+chunk.Duration > max {
		left := max - rec.duration
		keep := int(float64(len(chunk.Data)) * float64(left) / float64(chunk.Duration))
		if keep > 0 {
			rec.chunks = append(rec.chunks, chunk.Data[:keep])
		}
		rec.duration = max
		rec.full = true
		return
	}

	rec.chunks = append(rec.chunks, chunk.Data)
	rec.duration += chunk.Duration
	if rec.duration >= max {
		rec.full = true
	}
}

func (rec *recording) asset(max, elapsed time.Duration, mime string) AudioAsset {
	duration := rec.duration
	if duration == 0 && len(rec.chunks) > 0 {
		// the device did not time its chunks; fall back to wall clock
		duration = elapsed
	}
	if duration > max {
		duration = max
	}
	if mime == "" {
		mime = defaultAudioMime
	}
	return AudioAsset{
		Data:     bytes.Join(rec.chunks, nil),
		Duration: duration,
		MimeType: mime,
	}
}
