package stream

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tmpim/pxl"
)

// DefaultFramerate is the rate sequences are played at when none is given.
const DefaultFramerate = 20

// ErrPlaying is returned when starting playback while another is running.
var ErrPlaying = errors.New("stream: already playing")

type player struct {
	mutex  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Play draws each surface from frames into the pipeline and publishes it,
// one every 1/fps seconds. It returns when frames is closed or ctx is done.
// Surfaces must match the pipeline's logical resolution.
func (s *Server) Play(ctx context.Context, frames <-chan *pxl.Surface, fps int) error {
	if fps <= 0 {
		fps = DefaultFramerate
	}

	t := time.NewTicker(time.Second / time.Duration(fps))
	defer t.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		var frame *pxl.Surface
		var more bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, more = <-frames:
		}
		if !more {
			s.log.WithField("frames", count).Info("playback finished")
			return nil
		}

		var mismatch bool
		err := s.Pipeline.Draw(func(surface *pxl.Surface) {
			if surface.Width() != frame.Width() || surface.Height() != frame.Height() {
				mismatch = true
				return
			}
			copy(surface.Pix(), frame.Pix())
		})
		if err != nil {
			return err
		}
		if mismatch {
			return errors.Wrapf(pxl.ErrInvalidConfiguration,
				"stream: Play: frame %d is %dx%d", count, frame.Width(), frame.Height())
		}

		if err := s.PublishFrame(); err != nil {
			return err
		}
		count++
	}
}

// PlayFile decodes a media file with ffmpeg and plays it in the background.
// The file is scaled to the pipeline's logical resolution and indexed with
// its current palette.
func (s *Server) PlayFile(path string, fps int) error {
	if fps <= 0 {
		fps = DefaultFramerate
	}

	width, height, ok := s.Pipeline.LogicalSize()
	pal := s.Pipeline.Palette()
	if !ok || pal == nil {
		return errors.Wrap(pxl.ErrUninitialized, "stream: PlayFile: pipeline not ready")
	}

	ctx, cancel, err := s.startPlayback()
	if err != nil {
		return err
	}

	cmd := FileCommand(ctx, path, width, height, fps)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.finishPlayback()
		return err
	}
	if err := cmd.Start(); err != nil {
		s.finishPlayback()
		return errors.Wrap(err, "stream: PlayFile: start ffmpeg")
	}

	title := FileTitle(path)
	log := s.log.WithField("file", title)

	duration, err := ProbeDuration(ctx, path)
	if err != nil {
		log.WithError(err).Warn("could not probe duration")
	}
	s.Manager.SetMedia(title, duration)
	log.WithField("duration", duration).Info("playing file")

	frames := make(chan *pxl.Surface, fps)
	go func() {
		err := pxl.DecodeSequence(ctx, stdout, frames, pxl.SequenceOptions{
			Palette: pal,
			Width:   width,
			Height:  height,
			Logger:  log,
		})
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("decode ended")
		}
	}()

	go func() {
		if err := s.Play(ctx, frames, fps); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("playback ended")
		}

		cancel()
		cmd.Wait()
		s.finishPlayback()
	}()

	return nil
}

// Stop stops the current playback, if any, and waits for it to end.
func (s *Server) Stop() {
	s.player.mutex.Lock()
	cancel, done := s.player.cancel, s.player.done
	s.player.mutex.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Playing returns whether a playback is running.
func (s *Server) Playing() bool {
	s.player.mutex.Lock()
	defer s.player.mutex.Unlock()
	return s.player.cancel != nil
}

func (s *Server) startPlayback() (context.Context, context.CancelFunc, error) {
	s.player.mutex.Lock()
	defer s.player.mutex.Unlock()

	if s.player.cancel != nil {
		return nil, nil, ErrPlaying
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.player.cancel = cancel
	s.player.done = make(chan struct{})
	return ctx, cancel, nil
}

func (s *Server) finishPlayback() {
	s.player.mutex.Lock()
	if s.player.cancel == nil {
		s.player.mutex.Unlock()
		return
	}

	s.player.cancel()
	done := s.player.done
	s.player.cancel = nil
	s.player.done = nil
	s.player.mutex.Unlock()

	s.Manager.SetMedia("", 0)
	close(done)
}
