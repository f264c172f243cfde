// Package audio implements the capture pipeline: a raw PCM source is
// reframed into fixed-duration mono frames, base64-encoded, and forwarded
// to the active streaming session.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sidenote-ai/sidenote/types"
)

// Source produces a continuous raw PCM byte stream.
// Read returns interleaved 16-bit little-endian samples.
type Source interface {
	io.Reader

	// Stop terminates the source and releases its resources.
	Stop() error
}

// SourceFactory opens a Source for the given capture format.
type SourceFactory func(ctx context.Context, cfg types.AudioConfig) (Source, error)

const commandStartupGrace = 250 * time.Millisecond

// CommandSource spawns an external capture command (ffmpeg by default)
// that writes raw s16le PCM to stdout.
type CommandSource struct {
	command string
	format  string
	device  string
}

// CommandOption configures a CommandSource.
type CommandOption func(*CommandSource)

// WithInputFormat sets the capture backend ("pulse", "avfoundation", ...).
func WithInputFormat(format string) CommandOption {
	return func(s *CommandSource) { s.format = format }
}

// WithInputDevice selects the capture device.
func WithInputDevice(device string) CommandOption {
	return func(s *CommandSource) { s.device = device }
}

// NewCommandSource creates a capture-command factory.
func NewCommandSource(command string, opts ...CommandOption) *CommandSource {
	if command == "" {
		command = "ffmpeg"
	}
	s := &CommandSource{
		command: command,
		format:  "pulse",
		device:  "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open spawns the capture process and returns its PCM stream.
func (c *CommandSource) Open(ctx context.Context, cfg types.AudioConfig) (Source, error) {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.format,
		"-i", c.device,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start capture command: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// A capture command that dies immediately (bad device, missing
	// backend) should fail Open rather than the first Read.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("capture command exited before capture started: %w: %s",
				err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, errors.New("capture command exited before capture started")
	case <-time.After(commandStartupGrace):
	}

	return &commandSource{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type commandSource struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *commandSource) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop interrupts the capture process, escalating to kill if it hangs.
func (s *commandSource) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeExitErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
	})
	return s.stopErr
}

// normalizeExitErr drops the expected non-zero exit after an interrupt.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
