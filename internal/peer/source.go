package peer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// ErrNoCamera is returned when the requested facing mode has no device.
var ErrNoCamera = errors.New("peer: camera unavailable")

// FacingMode mirrors the browser camera facing constraint.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Opposite toggles between the front and back camera.
func (f FacingMode) Opposite() FacingMode {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Capture is an acquired local media pair. Tracks are owned by the
// capture; Close stops both.
type Capture struct {
	Audio webrtc.TrackLocal
	Video webrtc.TrackLocal

	stopAudio func()
	stopVideo func()
}

// NewCapture builds a capture from tracks and their stop functions.
func NewCapture(audio, video webrtc.TrackLocal, stopAudio, stopVideo func()) *Capture {
	return &Capture{Audio: audio, Video: video, stopAudio: stopAudio, stopVideo: stopVideo}
}

// Close stops both tracks. Safe on a nil receiver.
func (c *Capture) Close() {
	if c == nil {
		return
	}
	if c.stopAudio != nil {
		c.stopAudio()
		c.stopAudio = nil
	}
	if c.stopVideo != nil {
		c.stopVideo()
		c.stopVideo = nil
	}
}

// swapVideo replaces the video track after a successful camera switch.
func (c *Capture) swapVideo(track webrtc.TrackLocal, stop func()) {
	if c.stopVideo != nil {
		c.stopVideo()
	}
	c.Video = track
	c.stopVideo = stop
}

// MediaSource acquires local media. The synthetic implementation below
// serves headless peers and tests; a real client would back this with
// device capture.
type MediaSource interface {
	// Acquire obtains an audio+video capture for the facing mode.
	Acquire(ctx context.Context, facing FacingMode) (*Capture, error)
	// AcquireVideo obtains a standalone replacement video track, used
	// by the camera-switch sub-protocol.
	AcquireVideo(ctx context.Context, facing FacingMode) (webrtc.TrackLocal, func(), error)
}

// SyntheticSource generates silent Opus and blank VP8 samples on a
// ticker. Sample writes before the track is bound to a connection are
// no-ops, so acquisition is cheap.
type SyntheticSource struct {
	// Cameras limits which facing modes exist; empty means both.
	Cameras map[FacingMode]bool
}

// NewSyntheticSource returns a source with both cameras available.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{}
}

func (s *SyntheticSource) hasCamera(f FacingMode) bool {
	return len(s.Cameras) == 0 || s.Cameras[f]
}

// Acquire builds a silent audio track and a blank video track.
func (s *SyntheticSource) Acquire(ctx context.Context, facing FacingMode) (*Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.hasCamera(facing) {
		return nil, ErrNoCamera
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "string-peer")
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "string-peer")
	if err != nil {
		return nil, err
	}

	stopAudio := startWriter(audio, 20*time.Millisecond, silentOpusFrame)
	stopVideo := startWriter(video, 33*time.Millisecond, blankVP8Frame)
	return NewCapture(audio, video, stopAudio, stopVideo), nil
}

// AcquireVideo builds a standalone video track for the facing mode.
func (s *SyntheticSource) AcquireVideo(ctx context.Context, facing FacingMode) (webrtc.TrackLocal, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !s.hasCamera(facing) {
		return nil, nil, ErrNoCamera
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video-"+string(facing), "string-peer")
	if err != nil {
		return nil, nil, err
	}
	stop := startWriter(video, 33*time.Millisecond, blankVP8Frame)
	return video, stop, nil
}

var (
	// silentOpusFrame is a minimal valid Opus frame (silence).
	silentOpusFrame = []byte{0xf8, 0xff, 0xfe}
	// blankVP8Frame is an arbitrary small payload; the packetizer does
	// not require decodable frames.
	blankVP8Frame = make([]byte, 32)
)

func startWriter(track *webrtc.TrackLocalStaticSample, interval time.Duration, frame []byte) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				track.WriteSample(media.Sample{Data: frame, Duration: interval})
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}
