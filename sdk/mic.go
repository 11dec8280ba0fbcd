package pitchroom

import "context"

// Microphone grants access to a local audio source. Open blocks until
// the platform grants or denies access; denial surfaces as
// ErrMicrophonePermissionDenied.
type Microphone interface {
	Open(ctx context.Context) (MicStream, error)
}

// MicStream is a captured audio track. Stop releases the device and is
// safe to call more than once.
type MicStream interface {
	SetMuted(muted bool)
	Stop()
}

// NoopMicrophone always grants access and captures nothing. Useful for
// development and terminal clients without audio plumbing.
type NoopMicrophone struct{}

func (NoopMicrophone) Open(context.Context) (MicStream, error) {
	return &noopStream{}, nil
}

type noopStream struct{}

func (*noopStream) SetMuted(bool) {}
func (*noopStream) Stop()         {}
