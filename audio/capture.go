package audio

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sidenote-ai/sidenote/logger"
	"github.com/sidenote-ai/sidenote/types"
)

// Forwarder receives one encoded frame. Forwarding is fire-and-forget per
// frame; an error is logged and does not stop capture.
type Forwarder func(ctx context.Context, chunk *types.MediaChunk) error

const readBufferSize = 4096

// DefaultConfig is the capture format expected by the live session:
// 24 kHz interleaved stereo s16le, sliced into 100 ms frames.
func DefaultConfig() types.AudioConfig {
	return types.AudioConfig{
		SampleRate:    24000,
		Channels:      2,
		BitDepth:      16,
		FrameDuration: 100 * time.Millisecond,
	}
}

// Capture reads a continuous PCM stream, reframes it into fixed-duration
// mono frames, and forwards each frame to the active session.
type Capture struct {
	cfg     types.AudioConfig
	open    SourceFactory
	forward Forwarder

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	source  Source
	framer  *framer
	seq     int64
}

// NewCapture creates a capture pipeline. open provides the raw PCM source;
// forward receives each encoded frame.
func NewCapture(cfg types.AudioConfig, open SourceFactory, forward Forwarder) (*Capture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}
	if open == nil {
		return nil, fmt.Errorf("source factory is required")
	}
	if forward == nil {
		return nil, fmt.Errorf("forwarder is required")
	}
	return &Capture{
		cfg:     cfg,
		open:    open,
		forward: forward,
		framer:  newFramer(cfg),
	}, nil
}

// Start opens the source and begins forwarding frames.
// Returns an error if capture is already running or the source fails to open.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	source, err := c.open(runCtx, c.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open audio source: %w", err)
	}

	c.running = true
	c.cancel = cancel
	c.source = source
	c.framer.reset()
	c.seq = 0

	go c.readLoop(runCtx, source)
	return nil
}

// Stop terminates the audio source and discards buffered state.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	c.cancel()
	if err := c.source.Stop(); err != nil {
		logger.Warn("audio source stop failed", "error", err)
	}
	c.source = nil
	c.framer.reset()
}

// IsRunning reports whether capture is active.
func (c *Capture) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Capture) readLoop(ctx context.Context, source Source) {
	buf := make([]byte, readBufferSize)
	mimeType := fmt.Sprintf("audio/pcm;rate=%d", c.cfg.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := source.Read(buf)
		if n > 0 {
			for _, frame := range c.framer.push(buf[:n]) {
				chunk := &types.MediaChunk{
					Data:        base64.StdEncoding.EncodeToString(frame),
					MimeType:    mimeType,
					SequenceNum: c.nextSeq(),
					Timestamp:   time.Now(),
				}
				if fwdErr := c.forward(ctx, chunk); fwdErr != nil {
					logger.Warn("audio frame forwarding failed", "error", fwdErr, "seq", chunk.SequenceNum)
				}
			}
		}
		if err != nil {
			logger.Debug("audio source ended", "error", err)
			return
		}
	}
}

func (c *Capture) nextSeq() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.seq
	c.seq++
	return seq
}

// framer accumulates raw interleaved PCM and slices it into fixed-duration
// mono frames. Any partial frame stays buffered; the buffer is truncated
// to the most recent second of audio to bound memory.
type framer struct {
	cfg          types.AudioConfig
	buf          []byte
	bytesPerSec  int
	rawFrameSize int
}

func newFramer(cfg types.AudioConfig) *framer {
	return &framer{
		cfg:          cfg,
		bytesPerSec:  cfg.SampleRate * cfg.Channels * (cfg.BitDepth / 8),
		rawFrameSize: cfg.BytesPerFrame(),
	}
}

// push appends data and returns all complete mono frames now available.
func (f *framer) push(data []byte) [][]byte {
	f.buf = append(f.buf, data...)

	if excess := len(f.buf) - f.bytesPerSec; excess > 0 {
		// Drop whole interleaved samples only, or the channel phase of
		// everything after the cut would shift.
		stride := f.cfg.Channels * (f.cfg.BitDepth / 8)
		excess -= excess % stride
		f.buf = f.buf[excess:]
	}

	var frames [][]byte
	for len(f.buf) >= f.rawFrameSize {
		raw := f.buf[:f.rawFrameSize]
		frames = append(frames, downmixToMono(raw, f.cfg.Channels))
		f.buf = f.buf[f.rawFrameSize:]
	}
	return frames
}

// pending returns the size of the buffered partial frame.
func (f *framer) pending() int { return len(f.buf) }

func (f *framer) reset() { f.buf = nil }

// downmixToMono averages interleaved s16le channels per sample position.
// Mono input is copied unchanged.
func downmixToMono(raw []byte, channels int) []byte {
	if channels == 1 {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}

	sampleBytes := 2 * channels
	samples := len(raw) / sampleBytes
	out := make([]byte, samples*2)

	for i := 0; i < samples; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			offset := i*sampleBytes + ch*2
			sum += int(int16(binary.LittleEndian.Uint16(raw[offset:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/channels)))
	}
	return out
}
