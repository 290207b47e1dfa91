package chat

import "errors"

var (
	// ErrValidation indicates input rejected locally before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied indicates the microphone could not be acquired.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrNetwork indicates the remote collaborator could not be reached.
	ErrNetwork = errors.New("network failure")
	// ErrSessionNotFound indicates no chat exists for the activity.
	ErrSessionNotFound = errors.New("chat session not found")
	// ErrDuplicateSend indicates a send was dropped because another is in flight.
	ErrDuplicateSend = errors.New("send already in flight")
	// ErrRecordingTooShort indicates the finalized recording held no usable audio.
	ErrRecordingTooShort = errors.New("recording too short")
	// ErrAlreadyRecording indicates Start was called outside IDLE.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording indicates Stop was called outside RECORDING.
	ErrNotRecording = errors.New("not recording")
	// ErrNotEditable indicates the message is not an event sent by the caller.
	ErrNotEditable = errors.New("message cannot be edited")
	// ErrUploadFailed indicates the file storage rejected an attachment.
	ErrUploadFailed = errors.New("attachment upload failed")
	// ErrInviteInFlight indicates an invite to the same candidate is pending.
	ErrInviteInFlight = errors.New("invite already in flight")
	// ErrForbidden indicates the store refused the caller.
	ErrForbidden = errors.New("forbidden")
	// ErrRejected indicates the store refused the request for another reason.
	ErrRejected = errors.New("request rejected by store")
	// ErrNoSession indicates an operation that needs a loaded session ran before LoadSession.
	ErrNoSession = errors.New("no chat session loaded")
)
