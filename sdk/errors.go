package pitchroom

import (
	"errors"
	"fmt"
)

// Sentinel call-session failures. Callers branch with errors.Is.
var (
	// ErrCallInProgress is returned by StartCall when the session is not
	// idle. One live call per session; the previous one must be ended
	// first.
	ErrCallInProgress = errors.New("a call is already in progress")

	// ErrAgentNotVoiceEnabled is returned when the selected persona has
	// no realtime agent behind it. The microphone is never requested in
	// this case.
	ErrAgentNotVoiceEnabled = errors.New("persona is not voice enabled")

	// ErrMicrophonePermissionDenied is returned when the microphone
	// source refuses to open.
	ErrMicrophonePermissionDenied = errors.New("microphone permission denied")

	// ErrConnectionSetupFailed is returned when the gateway round trip
	// or the realtime dial fails.
	ErrConnectionSetupFailed = errors.New("connection setup failed")

	// ErrNoPersonaSelected is returned by StartCall before a persona has
	// been chosen.
	ErrNoPersonaSelected = errors.New("no persona selected")

	// ErrCallEnded is returned by StartCall when EndCall tears the
	// session down while setup is still in flight. The session stays
	// idle and the partially acquired resources are released.
	ErrCallEnded = errors.New("call ended during setup")
)

// TransportError wraps network-level failures while talking to the
// gateway, so callers can tell them apart from call-flow errors.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, e.URL, e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
