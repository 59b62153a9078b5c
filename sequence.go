package pxl

import (
	"context"
	"image"
	"io"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
)

// SequenceOptions configure DecodeSequence.
type SequenceOptions struct {
	Palette *Palette

	// Width and Height are the logical resolution frames are imported at.
	Width  int
	Height int

	Resampling Resampling

	// Workers is the number of frames imported at once. Zero uses every CPU.
	Workers int

	Logger logrus.FieldLogger
}

func (o *SequenceOptions) validate() error {
	if o.Palette == nil {
		return errors.Wrap(ErrUninitialized, "pxl: DecodeSequence: palette must be specified")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return invalidf("pxl: DecodeSequence: invalid dimensions %dx%d", o.Width, o.Height)
	}
	if o.Workers < 0 {
		return invalidf("pxl: DecodeSequence: workers must not be negative")
	}
	return nil
}

// DecodeSequence reads back to back BMP images from rd, such as the output
// of ffmpeg's image2pipe muxer, imports each one as an index surface and
// sends them to output in the order they were read. Frames are imported by
// a pool of workers. output is closed when DecodeSequence returns.
func DecodeSequence(ctx context.Context, rd io.Reader, output chan<- *Surface,
	opts SequenceOptions) error {
	defer close(output)

	if err := opts.validate(); err != nil {
		return err
	}

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbox := make(chan frameJob, workers*2)
	for i := 0; i < workers; i++ {
		go importWorker(ctx, inbox, &opts)
	}

	outputChan := make(chan chan frameOrError, workers*2)
	errChan := make(chan error, 1)
	go decodeToWorkerPump(ctx, rd, inbox, outputChan, errChan)

	frames := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frameOutput, more := <-outputChan:
			if !more {
				select {
				case err := <-errChan:
					return errors.Wrap(err, "pxl: DecodeSequence: decode")
				default:
				}
				logger.WithField("frames", frames).Debug("sequence decoded")
				return nil
			}

			var frame frameOrError
			select {
			case frame = <-frameOutput:
			case <-ctx.Done():
				return ctx.Err()
			}

			if frame.err != nil {
				return errors.Wrapf(frame.err, "pxl: DecodeSequence: frame %d", frames)
			}

			select {
			case output <- frame.surface:
			case <-ctx.Done():
				return ctx.Err()
			}
			frames++
		}
	}
}

type frameOrError struct {
	surface *Surface
	err     error
}

type frameJob struct {
	img    image.Image
	output chan<- frameOrError
}

func decodeToWorkerPump(ctx context.Context, rd io.Reader, inbox chan<- frameJob,
	outputChan chan<- chan frameOrError, errChan chan<- error) {
	defer close(inbox)
	defer close(outputChan)

	for {
		img, err := bmp.Decode(rd)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return
		} else if err != nil {
			errChan <- err
			return
		}

		frameOutput := make(chan frameOrError, 1)
		select {
		case outputChan <- frameOutput:
		case <-ctx.Done():
			return
		}

		select {
		case inbox <- frameJob{img: img, output: frameOutput}:
		case <-ctx.Done():
			return
		}
	}
}

func importWorker(ctx context.Context, inbox <-chan frameJob, opts *SequenceOptions) {
	for job := range inbox {
		if ctx.Err() != nil {
			return
		}

		s, err := Import(job.img, opts.Palette, opts.Width, opts.Height, opts.Resampling)
		job.output <- frameOrError{surface: s, err: err}
	}
}
