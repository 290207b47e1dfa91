package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(mic Microphone, sink AudioSink, notifier Notifier, cfg RecorderConfig) *Recorder {
	recorder := NewRecorder(mic, sink, notifier, cfg, zerolog.Nop())
	recorder.now = func() time.Time { return time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC) }
	return recorder
}

func TestRecorderStopSendsAudioAttachment(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, nil, RecorderConfig{Tick: time.Hour})

	require.NoError(t, recorder.Start(context.Background()))
	require.Equal(t, RecorderRecording, recorder.State())
	require.Equal(t, 30, recorder.Remaining())

	require.True(t, capture.push(AudioChunk{Data: []byte("aaaa"), Duration: 1500 * time.Millisecond}))
	require.True(t, capture.push(AudioChunk{Data: []byte("bbbb"), Duration: 1500 * time.Millisecond}))

	asset, err := recorder.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, asset.Duration)
	require.Equal(t, []byte("aaaabbbb"), asset.Data)

	sent := sink.sent()
	require.Len(t, sent, 1)
	require.Equal(t, KindAudio, sink.kinds[0])
	require.True(t, strings.HasPrefix(sent[0].Name, "voice-"))
	require.Equal(t, "audio/webm", sent[0].ContentType)

	require.True(t, capture.isClosed())
	require.Equal(t, RecorderIdle, recorder.State())
}

func TestRecorderForcedStopBoundsDuration(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{}
	notices := &NoticeRecorder{}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, notices, RecorderConfig{
		MaxDuration: 3 * time.Second,
		MinDuration: time.Millisecond,
		Tick:        20 * time.Millisecond,
	})

	require.NoError(t, recorder.Start(context.Background()))
	for i := 0; i < 3; i++ {
		require.True(t, capture.push(AudioChunk{Data: []byte("0123456789"), Duration: time.Second}))
	}
	go capture.push(AudioChunk{Data: []byte("overflow!!"), Duration: time.Second})

	require.Eventually(t, func() bool {
		return recorder.State() == RecorderIdle && len(sink.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent := sink.sent()
	require.LessOrEqual(t, len(sent[0].Data), 30)
	require.NotContains(t, string(sent[0].Data), "overflow")
	require.True(t, notices.Has(NoticeMaxLengthReached))
	require.True(t, capture.isClosed())

	_, err := recorder.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorderStopsWhenCapturedAudioReachesLimit(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{}
	notices := &NoticeRecorder{}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, notices, RecorderConfig{
		MaxDuration: 30 * time.Second,
		Tick:        time.Hour,
	})

	require.NoError(t, recorder.Start(context.Background()))
	require.True(t, capture.push(AudioChunk{Data: []byte("0123456789"), Duration: 20 * time.Second}))
	require.True(t, capture.push(AudioChunk{Data: []byte("0123456789"), Duration: 20 * time.Second}))

	require.Eventually(t, func() bool {
		return recorder.State() == RecorderIdle && len(sink.sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, "012345678901234", string(sink.sent()[0].Data))
	require.True(t, notices.Has(NoticeMaxLengthReached))
	require.True(t, capture.isClosed())
	require.False(t, capture.push(AudioChunk{Data: []byte("late"), Duration: time.Second}))
}

func TestRecorderTruncatesChunkCrossingLimit(t *testing.T) {
	rec := &recording{}
	rec.add(AudioChunk{Data: []byte("aaaaaaaaaa"), Duration: 2 * time.Second}, 3*time.Second)
	rec.add(AudioChunk{Data: []byte("bbbbbbbbbb"), Duration: 2 * time.Second}, 3*time.Second)
	rec.add(AudioChunk{Data: []byte("cccccccccc"), Duration: 2 * time.Second}, 3*time.Second)

	asset := rec.asset(3*time.Second, time.Minute, "audio/ogg")
	require.Equal(t, 3*time.Second, asset.Duration)
	require.Equal(t, "aaaaaaaaaabbbbb", string(asset.Data))
	require.Equal(t, "audio/ogg", asset.MimeType)
}

func TestRecorderEarlyStopDiscardsRecording(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{}
	notices := &NoticeRecorder{}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, notices, RecorderConfig{Tick: time.Hour})

	require.NoError(t, recorder.Start(context.Background()))
	require.True(t, capture.push(AudioChunk{Data: []byte("tiny"), Duration: 200 * time.Millisecond}))

	_, err := recorder.Stop(context.Background())
	require.ErrorIs(t, err, ErrRecordingTooShort)
	require.Empty(t, sink.sent())
	require.True(t, notices.Has(NoticeRecordingShort))
	require.True(t, capture.isClosed())
	require.Equal(t, RecorderIdle, recorder.State())
}

func TestRecorderStopWithoutDataDiscardsRecording(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, nil, RecorderConfig{Tick: time.Hour})

	require.NoError(t, recorder.Start(context.Background()))
	_, err := recorder.Stop(context.Background())
	require.ErrorIs(t, err, ErrRecordingTooShort)
	require.Empty(t, sink.sent())
	require.True(t, capture.isClosed())
}

func TestRecorderNoMessageForShortRecording(t *testing.T) {
	store := newStoreStub(testSession)
	storage := &storageStub{}
	controller := newLoadedController(t, store, storage, nil)

	capture := newCaptureStub()
	recorder := newTestRecorder(&micStub{capture: capture}, controller, nil, RecorderConfig{Tick: time.Hour})

	require.NoError(t, recorder.Start(context.Background()))
	require.True(t, capture.push(AudioChunk{Data: []byte("tiny"), Duration: 100 * time.Millisecond}))
	_, err := recorder.Stop(context.Background())
	require.ErrorIs(t, err, ErrRecordingTooShort)

	require.Empty(t, storage.uploads)
	require.Zero(t, store.createCount())
	require.Empty(t, controller.Messages())
}

func TestRecorderVoiceMessageReachesStore(t *testing.T) {
	store := newStoreStub(testSession)
	storage := &storageStub{}
	controller := newLoadedController(t, store, storage, nil)

	capture := newCaptureStub()
	recorder := newTestRecorder(&micStub{capture: capture}, controller, nil, RecorderConfig{Tick: time.Hour})

	require.NoError(t, recorder.Start(context.Background()))
	require.True(t, capture.push(AudioChunk{Data: []byte("voice-data"), Duration: 2 * time.Second}))
	_, err := recorder.Stop(context.Background())
	require.NoError(t, err)

	messages := controller.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, KindAudio, messages[0].Kind)
	require.NotEmpty(t, messages[0].AttachmentURL)
	_, ok := ContentOf(messages[0]).(Audio)
	require.True(t, ok)
}

func TestRecorderUploadFailureStillReturnsToIdle(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{err: ErrUploadFailed}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, nil, RecorderConfig{Tick: time.Hour})

	require.NoError(t, recorder.Start(context.Background()))
	require.True(t, capture.push(AudioChunk{Data: []byte("voice-data"), Duration: 2 * time.Second}))

	_, err := recorder.Stop(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.sent(), 1)
	require.Equal(t, RecorderIdle, recorder.State())
}

func TestRecorderPermissionDenied(t *testing.T) {
	notices := &NoticeRecorder{}
	recorder := newTestRecorder(&micStub{err: errors.New("NotAllowedError")}, &sinkStub{}, notices, RecorderConfig{})

	err := recorder.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, RecorderIdle, recorder.State())
	require.True(t, notices.Has(NoticePermissionDenied))
}

func TestRecorderRejectsOutOfStateCalls(t *testing.T) {
	capture := newCaptureStub()
	mic := &micStub{capture: capture}
	recorder := newTestRecorder(mic, &sinkStub{}, nil, RecorderConfig{Tick: time.Hour})

	_, err := recorder.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, recorder.Start(context.Background()))
	require.ErrorIs(t, recorder.Start(context.Background()), ErrAlreadyRecording)
	require.Equal(t, 1, mic.opens)

	_, err = recorder.Stop(context.Background())
	require.ErrorIs(t, err, ErrRecordingTooShort)
}

func TestRecorderContextCancelAbandonsRecording(t *testing.T) {
	capture := newCaptureStub()
	sink := &sinkStub{}
	recorder := newTestRecorder(&micStub{capture: capture}, sink, nil, RecorderConfig{Tick: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, recorder.Start(ctx))
	require.True(t, capture.push(AudioChunk{Data: []byte("voice-data"), Duration: 2 * time.Second}))
	cancel()

	require.Eventually(t, func() bool {
		return recorder.State() == RecorderIdle && capture.isClosed()
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, sink.sent())
}

func TestRecorderCountdown(t *testing.T) {
	capture := newCaptureStub()
	recorder := newTestRecorder(&micStub{capture: capture}, &sinkStub{}, nil, RecorderConfig{
		MaxDuration: 10 * time.Second,
		Tick:        10 * time.Millisecond,
	})

	require.NoError(t, recorder.Start(context.Background()))
	require.Eventually(t, func() bool {
		remaining := recorder.Remaining()
		return remaining > 0 && remaining < 10
	}, time.Second, 2*time.Millisecond)

	_, _ = recorder.Stop(context.Background())
	require.Eventually(t, func() bool {
		return recorder.State() == RecorderIdle && recorder.Remaining() == 0
	}, time.Second, 5*time.Millisecond)
}
