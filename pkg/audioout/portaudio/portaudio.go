// Package portaudio implements audioout.Player on the default output device
// via the PortAudio C library.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/cardvox/cardvox/pkg/audioout"
)

// framesPerBuffer is the PortAudio stream buffer size in frames. 512 frames
// at 16 kHz is 32 ms per write, small enough for prompt cancellation.
const framesPerBuffer = 512

// Player plays PCM buffers through the system's default output device.
// Create with New and release with Close.
type Player struct {
	mu     sync.Mutex
	closed bool
}

// New initialises the PortAudio runtime and returns a Player.
func New() (*Player, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Player{}, nil
}

// Close releases the PortAudio runtime. Safe to call once.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return pa.Terminate()
}

// Play renders the PCM buffer to completion. Samples must be 16-bit
// little-endian. Playback stops early when ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte, format audioout.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("portaudio: player is closed")
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("portaudio: invalid format %+v", format)
	}
	if len(pcm)%2 != 0 {
		return errors.New("portaudio: pcm length is not sample-aligned")
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	buf := make([]int16, framesPerBuffer*format.Channels)
	stream, err := pa.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), framesPerBuffer, &buf)
	if err != nil {
		return fmt.Errorf("portaudio: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := copy(buf, samples[off:])
		// Zero-pad the final partial buffer.
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}

// Ensure Player satisfies the interface.
var _ audioout.Player = (*Player)(nil)
