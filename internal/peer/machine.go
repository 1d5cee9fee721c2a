// Package peer implements the per-participant negotiation state
// machine: it turns relayed signaling payloads into a live WebRTC
// media connection and owns the local capture and connection objects.
package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
)

// State is the lifecycle of one connection attempt.
type State int32

const (
	StateIdle State = iota
	StateAcquiringMedia
	StateQueued
	StateNegotiating
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringMedia:
		return "acquiring-media"
	case StateQueued:
		return "queued"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrNoMedia      = errors.New("peer: no local media acquired")
	ErrBadState     = errors.New("peer: operation invalid in current state")
	ErrNoConnection = errors.New("peer: no active connection")
)

// Signaler sends negotiation payloads to the partner through the relay.
type Signaler interface {
	SendOffer(to string, sdp webrtc.SessionDescription) error
	SendAnswer(to string, sdp webrtc.SessionDescription) error
	SendCandidate(to string, cand webrtc.ICECandidateInit) error
}

// Machine drives one participant's side of the negotiation. All entry
// points are safe for concurrent use; pion callbacks arrive on their
// own goroutines.
type Machine struct {
	mu sync.Mutex

	state     State
	signaler  Signaler
	source    MediaSource
	iceServer []string

	capture     *Capture
	pc          *webrtc.PeerConnection
	videoSender *webrtc.RTPSender
	partnerID   string
	facing      FacingMode
	pending     []webrtc.ICECandidateInit

	// OnStateChange, if set, is invoked (without the machine lock held)
	// after every transition.
	OnStateChange func(State)
	// OnRemoteTrack, if set, receives each inbound media track.
	OnRemoteTrack func(*webrtc.TrackRemote)
}

// NewMachine creates an idle machine. iceServers are STUN/TURN URLs.
func NewMachine(signaler Signaler, source MediaSource, iceServers []string) *Machine {
	return &Machine{
		state:     StateIdle,
		signaler:  signaler,
		source:    source,
		iceServer: iceServers,
		facing:    FacingUser,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Partner returns the current partner id, if any.
func (m *Machine) Partner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partnerID
}

// Facing returns the active camera facing mode.
func (m *Machine) Facing() FacingMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facing
}

// Start acquires local media. It must succeed before the participant
// may queue; acquisition failure is terminal for this attempt and is
// not retried here.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateIdle, StateClosed, StateFailed:
	default:
		m.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrBadState, m.state)
	}
	m.teardownLocked()
	m.setStateLocked(StateAcquiringMedia)
	facing := m.facing
	m.mu.Unlock()

	capture, err := m.source.Acquire(ctx, facing)
	if err != nil {
		m.transition(StateFailed)
		return fmt.Errorf("acquire media: %w", err)
	}

	m.mu.Lock()
	m.capture = capture
	m.setStateLocked(StateQueued)
	m.mu.Unlock()
	return nil
}

// HandleMatched reacts to the matched event. The initiator builds and
// sends the offer; the responder waits for one. Either way the machine
// is negotiating afterwards.
func (m *Machine) HandleMatched(partnerID string, initiator bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture == nil {
		return ErrNoMedia
	}
	if m.state != StateQueued {
		return fmt.Errorf("%w: matched in %s", ErrBadState, m.state)
	}

	m.partnerID = partnerID
	if err := m.createConnectionLocked(); err != nil {
		m.setStateLocked(StateFailed)
		return err
	}
	m.setStateLocked(StateNegotiating)

	if !initiator {
		return nil
	}

	offer, err := m.pc.CreateOffer(nil)
	if err != nil {
		m.setStateLocked(StateFailed)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := m.pc.SetLocalDescription(offer); err != nil {
		m.setStateLocked(StateFailed)
		return fmt.Errorf("set local description: %w", err)
	}
	return m.signaler.SendOffer(partnerID, *m.pc.LocalDescription())
}

// HandleOffer applies a remote offer and replies with an answer.
func (m *Machine) HandleOffer(from string, offer webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.partnerID = from
	if m.pc == nil {
		if m.capture == nil {
			return ErrNoMedia
		}
		if err := m.createConnectionLocked(); err != nil {
			m.setStateLocked(StateFailed)
			return err
		}
		m.setStateLocked(StateNegotiating)
	}

	if err := m.pc.SetRemoteDescription(offer); err != nil {
		m.setStateLocked(StateFailed)
		return fmt.Errorf("set remote offer: %w", err)
	}
	m.flushCandidatesLocked()

	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		m.setStateLocked(StateFailed)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := m.pc.SetLocalDescription(answer); err != nil {
		m.setStateLocked(StateFailed)
		return fmt.Errorf("set local description: %w", err)
	}
	return m.signaler.SendAnswer(from, *m.pc.LocalDescription())
}

// HandleAnswer applies the remote answer.
func (m *Machine) HandleAnswer(answer webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pc == nil {
		return ErrNoConnection
	}
	if err := m.pc.SetRemoteDescription(answer); err != nil {
		m.setStateLocked(StateFailed)
		return fmt.Errorf("set remote answer: %w", err)
	}
	m.flushCandidatesLocked()
	return nil
}

// HandleCandidate applies a relayed ICE candidate. Candidates may
// arrive in any order relative to the description exchange: one that
// lands before the remote description is buffered and flushed once the
// description applies, never discarded.
func (m *Machine) HandleCandidate(cand webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pc == nil || m.pc.RemoteDescription() == nil {
		m.pending = append(m.pending, cand)
		return nil
	}
	if err := m.pc.AddICECandidate(cand); err != nil {
		slog.Warn("add candidate failed", "err", err)
		return err
	}
	return nil
}

// PendingCandidates reports how many candidates are buffered awaiting
// the remote description.
func (m *Machine) PendingCandidates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// SwitchCamera hot-swaps the outgoing video track for the opposite
// facing mode without renegotiation. On acquisition failure the facing
// mode, the current track, and the connection are left untouched; the
// remote peer observes no partial state.
func (m *Machine) SwitchCamera(ctx context.Context) error {
	m.mu.Lock()
	if m.capture == nil {
		m.mu.Unlock()
		return ErrNoMedia
	}
	next := m.facing.Opposite()
	m.mu.Unlock()

	track, stop, err := m.source.AcquireVideo(ctx, next)
	if err != nil {
		return fmt.Errorf("acquire %s camera: %w", next, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.capture == nil {
		// Torn down while the capture was being acquired.
		stop()
		return ErrNoMedia
	}
	if m.videoSender != nil {
		if err := m.videoSender.ReplaceTrack(track); err != nil {
			stop()
			return fmt.Errorf("replace track: %w", err)
		}
	}
	m.capture.swapVideo(track, stop)
	m.facing = next
	slog.Info("camera switched", "facing", next)
	return nil
}

// Close tears the machine down: connection, local capture, candidate
// buffer, partner reference. Idempotent, callable from any state.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.setStateLocked(StateClosed)
	m.mu.Unlock()
}

func (m *Machine) createConnectionLocked() error {
	cfg := webrtc.Configuration{}
	if len(m.iceServer) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: m.iceServer}}
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}

	if m.capture.Audio != nil {
		if _, err := pc.AddTrack(m.capture.Audio); err != nil {
			pc.Close()
			return fmt.Errorf("add audio track: %w", err)
		}
	}
	if m.capture.Video != nil {
		sender, err := pc.AddTrack(m.capture.Video)
		if err != nil {
			pc.Close()
			return fmt.Errorf("add video track: %w", err)
		}
		m.videoSender = sender
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		m.mu.Lock()
		to := m.partnerID
		m.mu.Unlock()
		if to == "" {
			return
		}
		if err := m.signaler.SendCandidate(to, c.ToJSON()); err != nil {
			slog.Warn("send candidate failed", "err", err)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		slog.Debug("connection state", "state", s)
		switch s {
		case webrtc.PeerConnectionStateConnected:
			m.transition(StateConnected)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			m.transition(StateFailed)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if m.OnRemoteTrack != nil {
			m.OnRemoteTrack(track)
		}
	})

	m.pc = pc
	return nil
}

func (m *Machine) flushCandidatesLocked() {
	for _, cand := range m.pending {
		if err := m.pc.AddICECandidate(cand); err != nil {
			slog.Warn("flush candidate failed", "err", err)
		}
	}
	m.pending = nil
}

func (m *Machine) teardownLocked() {
	if m.pc != nil {
		m.pc.Close()
		m.pc = nil
	}
	if m.capture != nil {
		m.capture.Close()
		m.capture = nil
	}
	m.videoSender = nil
	m.partnerID = ""
	m.pending = nil
}

// transition sets the state under the lock; explicit Close wins over
// late connection-observer callbacks.
func (m *Machine) transition(next State) {
	m.mu.Lock()
	if m.state == StateClosed || m.state == next {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(next)
	m.mu.Unlock()
}

func (m *Machine) setStateLocked(next State) {
	m.state = next
	if cb := m.OnStateChange; cb != nil {
		go cb(next)
	}
}
