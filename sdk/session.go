package pitchroom

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CallState is the phase of the call-session state machine.
type CallState string

const (
	StateIdle                 CallState = "idle"
	StateRequestingPermission CallState = "requesting_permission"
	StateConnecting           CallState = "connecting"
	StateActive               CallState = "active"
	StateEnding               CallState = "ending"
	StateErrored              CallState = "errored"
)

// Speaking indicates which party is currently talking.
type Speaking string

const (
	SpeakingNone   Speaking = "none"
	SpeakingLocal  Speaking = "local"
	SpeakingRemote Speaking = "remote"
)

// CallSession drives one role-play call: persona selection, microphone
// capture, the gateway handshake, and the realtime connection. At most
// one live connection and one duration ticker exist per session.
type CallSession struct {
	client *Client
	mic    Microphone
	dialer *websocket.Dialer
	tick   time.Duration

	mu         sync.Mutex
	state      CallState
	gen        int
	persona    *Persona
	conn       *websocket.Conn
	micStream  MicStream
	muted      bool
	speaking   Speaking
	duration   int
	stopTicker chan struct{}
	lastErr    error
}

// NewCallSession creates an idle session. mic defaults to
// NoopMicrophone when nil.
func NewCallSession(client *Client, mic Microphone) *CallSession {
	if mic == nil {
		mic = NoopMicrophone{}
	}
	return &CallSession{
		client:   client,
		mic:      mic,
		dialer:   websocket.DefaultDialer,
		tick:     time.Second,
		state:    StateIdle,
		speaking: SpeakingNone,
	}
}

// SelectPersona chooses the call partner for the next call. Rejected
// while a call is in flight.
func (s *CallSession) SelectPersona(p Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrCallInProgress
	}
	s.persona = &p
	return nil
}

// Persona returns the currently selected persona, if any.
func (s *CallSession) Persona() *Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persona == nil {
		return nil
	}
	p := *s.persona
	return &p
}

// StartCall places a call to the selected persona: requests the
// microphone, asks the gateway for a signed connection URL, and dials
// it. Returns once the connection is open (Active) or the attempt has
// failed and the session is back to Idle.
func (s *CallSession) StartCall(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrCallInProgress
	}
	p := s.persona
	if p == nil {
		s.mu.Unlock()
		return ErrNoPersonaSelected
	}
	// Checked before any microphone access: a text-only persona must
	// never trigger a permission prompt.
	if !p.VoiceEnabled() {
		s.mu.Unlock()
		return ErrAgentNotVoiceEnabled
	}
	s.state = StateRequestingPermission
	s.lastErr = nil
	// The attempt's generation ties every commit below to this call.
	// Teardown bumps it, so a hangup during any suspension point makes
	// the remaining commits abort instead of resurrecting the session.
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.mic.Open(ctx)
	if err != nil {
		return s.fail(gen, fmt.Errorf("%w: %v", ErrMicrophonePermissionDenied, err))
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stream.Stop()
		return ErrCallEnded
	}
	s.micStream = stream
	stream.SetMuted(s.muted)
	s.state = StateConnecting
	s.mu.Unlock()

	connectURL, err := s.client.SignedCallURL(ctx, p.ElevenLabsAgentID)
	if err != nil {
		return s.fail(gen, fmt.Errorf("%w: %v", ErrConnectionSetupFailed, err))
	}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrCallEnded
	}
	s.mu.Unlock()

	// The signed URL is dialed exactly as issued.
	conn, resp, err := s.dialer.DialContext(ctx, connectURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return s.fail(gen, fmt.Errorf("%w: %v", ErrConnectionSetupFailed, err))
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrCallEnded
	}
	s.conn = conn
	s.state = StateActive
	s.speaking = SpeakingNone
	s.duration = 0
	stop := make(chan struct{})
	s.stopTicker = stop
	s.mu.Unlock()

	go s.runTicker(stop)
	go s.readLoop(conn, gen)
	return nil
}

// EndCall hangs up and releases the connection, ticker, and microphone.
// Safe to call at any time, including twice.
func (s *CallSession) EndCall() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateEnding
	s.mu.Unlock()
	s.teardown()
}

// Close implements io.Closer for defer-friendly teardown.
func (s *CallSession) Close() error {
	s.EndCall()
	return nil
}

// ToggleMute flips the mute flag and the microphone track. The realtime
// connection is unaffected. Returns the new muted state.
func (s *CallSession) ToggleMute() bool {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	stream := s.micStream
	s.mu.Unlock()
	if stream != nil {
		stream.SetMuted(muted)
	}
	return muted
}

// State returns the current phase of the session.
func (s *CallSession) State() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration returns the elapsed call time in seconds. Zero outside an
// active call.
func (s *CallSession) Duration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Speaking returns the current speaking indicator.
func (s *CallSession) Speaking() Speaking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Muted reports the mute flag.
func (s *CallSession) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// LastError returns the failure that ended the most recent call
// attempt, or nil.
func (s *CallSession) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *CallSession) fail(gen int, err error) error {
	s.mu.Lock()
	if s.gen != gen {
		// Torn down in the meantime; the failure belongs to a call that
		// no longer exists.
		s.mu.Unlock()
		return ErrCallEnded
	}
	s.state = StateErrored
	s.lastErr = err
	s.mu.Unlock()
	s.teardown()
	return err
}

// teardown releases every per-call resource and drains the session back
// to Idle. Runs on every exit path; nil swaps keep it idempotent.
func (s *CallSession) teardown() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	stream := s.micStream
	s.micStream = nil
	stop := s.stopTicker
	s.stopTicker = nil
	s.duration = 0
	s.speaking = SpeakingNone
	s.state = StateIdle
	s.gen++
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		_ = conn.Close()
	}
	if stream != nil {
		stream.Stop()
	}
}

func (s *CallSession) runTicker(stop chan struct{}) {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.mu.Lock()
			if s.state == StateActive {
				s.duration++
			}
			s.mu.Unlock()
		}
	}
}

func (s *CallSession) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			current := s.conn == conn
			s.mu.Unlock()
			if !current {
				// Teardown already closed this connection.
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.mu.Lock()
				s.state = StateEnding
				s.mu.Unlock()
				s.teardown()
				return
			}
			_ = s.fail(gen, fmt.Errorf("realtime connection lost: %w", err))
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) != nil {
			continue
		}

		s.mu.Lock()
		if s.conn == conn {
			switch msg.Type {
			case "speech_started":
				s.speaking = SpeakingRemote
			case "speech_ended":
				s.speaking = SpeakingLocal
			}
		}
		s.mu.Unlock()
	}
}
