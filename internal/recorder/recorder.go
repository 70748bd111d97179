package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ManifestFile is written next to the frames when a recording stops
const ManifestFile = "manifest.json"

// PreviewFile is the optional GIF rendered from the frames
const PreviewFile = "preview.gif"

// Options configures a recording
type Options struct {
	Dir           string // parent directory; frames go to Dir/RunID
	RunID         string
	JPEGQuality   int
	ViewportWidth int // CSS pixels, used to place the cursor on scaled frames
	GIF           bool
	GIFMaxWidth   uint
}

// Frame is one captured screencast image
type Frame struct {
	File   string    `json:"file"`
	At     time.Time `json:"at"`
	Cursor Point     `json:"cursor"`
}

// Point is a pointer position in CSS pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Manifest describes a finished recording
type Manifest struct {
	RunID         string    `json:"runId"`
	Dir           string    `json:"dir"`
	ViewportWidth int       `json:"viewportWidth"`
	Started       time.Time `json:"started"`
	Stopped       time.Time `json:"stopped"`
	Frames        []Frame   `json:"frames"`
	GIF           string    `json:"gif,omitempty"`
}

// Recorder captures the page through the CDP screencast while playback runs
type Recorder struct {
	page   *rod.Page
	opts   Options
	dir    string
	logger *zap.Logger

	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.Mutex
	frames   []Frame
	started  time.Time
	stopOnce sync.Once
	manifest Manifest
	stopErr  error
}

// Start begins capturing page into opts.Dir/opts.RunID.
func Start(ctx context.Context, page *rod.Page, opts Options, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RunID == "" {
		return nil, errors.New("recording needs a run id")
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 80
	}

	dir := filepath.Join(opts.Dir, opts.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording dir: %w", err)
	}

	// Frames keep flowing until Stop, even if the run context ends first.
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, gctx := errgroup.WithContext(rctx)

	r := &Recorder{
		page:    page,
		opts:    opts,
		dir:     dir,
		logger:  logger.Named("recorder"),
		cancel:  cancel,
		group:   group,
		started: time.Now(),
	}

	incoming := make(chan *proto.PageScreencastFrame, 64)
	wait := page.Context(gctx).EachEvent(func(e *proto.PageScreencastFrame) {
		_ = proto.PageScreencastFrameAck{SessionID: e.SessionID}.Call(page)
		select {
		case incoming <- e:
		case <-gctx.Done():
		}
	})

	group.Go(func() error {
		wait()
		close(incoming)
		return nil
	})
	group.Go(func() error {
		for e := range incoming {
			if err := r.write(e.Data, page.Mouse.Position()); err != nil {
				return err
			}
		}
		return nil
	})

	quality := opts.JPEGQuality
	if err := (proto.PageStartScreencast{
		Format:  proto.PageStartScreencastFormatJpeg,
		Quality: &quality,
	}).Call(page); err != nil {
		cancel()
		_ = group.Wait()
		return nil, fmt.Errorf("failed to start screencast: %w", err)
	}

	r.logger.Info("Recording started", zap.String("dir", dir))
	return r, nil
}

func (r *Recorder) write(data []byte, pos proto.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := fmt.Sprintf("frame-%06d.jpg", len(r.frames)+1)
	if err := os.WriteFile(filepath.Join(r.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.frames = append(r.frames, Frame{File: name, At: time.Now(), Cursor: Point{X: pos.X, Y: pos.Y}})
	return nil
}

// Stop ends the screencast, flushes pending frames and writes the manifest
// (and the GIF preview when enabled). Later calls return the first result.
func (r *Recorder) Stop() (Manifest, error) {
	r.stopOnce.Do(func() {
		var errs []error
		if err := (proto.PageStopScreencast{}).Call(r.page); err != nil {
			errs = append(errs, fmt.Errorf("stop screencast: %w", err))
		}
		r.cancel()
		if err := r.group.Wait(); err != nil {
			errs = append(errs, err)
		}

		r.mu.Lock()
		r.manifest = Manifest{
			RunID:         r.opts.RunID,
			Dir:           r.dir,
			ViewportWidth: r.opts.ViewportWidth,
			Started:       r.started,
			Stopped:       time.Now(),
			Frames:        append([]Frame(nil), r.frames...),
		}
		r.mu.Unlock()

		if r.opts.GIF && len(r.manifest.Frames) > 0 {
			out := filepath.Join(r.dir, PreviewFile)
			size, err := EncodeGIF(r.manifest, out, GIFOptions{MaxWidth: r.opts.GIFMaxWidth})
			if err != nil {
				errs = append(errs, fmt.Errorf("render preview: %w", err))
			} else {
				r.manifest.GIF = out
				r.logger.Info("Preview rendered", zap.String("file", out), zap.Float64("mb", float64(size)/(1024*1024)))
			}
		}

		if err := WriteManifest(r.manifest); err != nil {
			errs = append(errs, err)
		}
		r.stopErr = errors.Join(errs...)
	})
	return r.manifest, r.stopErr
}

// WriteManifest stores m as Dir/manifest.json.
func WriteManifest(m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest of the recording in dir.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.Dir = dir
	return m, nil
}
