package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/v0xg/demoreel/internal/recorder"
	"go.uber.org/zap"
)

// Options configures the browser at launch. Nothing here changes during playback.
type Options struct {
	Headless          bool
	Width             int
	Height            int
	DeviceScaleFactor float64
	Maximized         bool
	Stealth           bool
	Bin               string // Chrome/Chromium binary, auto-detected when empty
	ProfileDir        string // Chrome/Chromium profile directory for authenticated sessions

	// OverlayScript is registered as a new-document initializer so every
	// navigation starts with the overlay mounted.
	OverlayScript string

	// Record enables screencast capture when non-nil.
	Record *recorder.Options
}

// Session wraps the Rod browser and page for one playback run
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	rec      *recorder.Recorder
	ownsDir  bool
	logger   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Launch starts a browser, opens the page and installs the overlay.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("browser")

	l := newLauncher(opts)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s := &Session{launcher: l, ownsDir: opts.ProfileDir == "", logger: logger}

	s.browser = rod.New().ControlURL(u)
	if err := s.browser.Connect(); err != nil {
		s.teardown()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if opts.Stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: opts.DeviceScaleFactor,
		Mobile:            false,
	}); err != nil {
		logger.Warn("Failed to set viewport", zap.Error(err))
	}

	if opts.OverlayScript != "" {
		if _, err := s.page.Context(ctx).EvalOnNewDocument(opts.OverlayScript); err != nil {
			s.teardown()
			return nil, fmt.Errorf("failed to install overlay: %w", err)
		}
	}

	if opts.Record != nil {
		s.rec, err = recorder.Start(ctx, s.page, *opts.Record, logger)
		if err != nil {
			s.teardown()
			return nil, fmt.Errorf("failed to start recording: %w", err)
		}
	}

	logger.Info("Browser ready",
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.Float64("scale", opts.DeviceScaleFactor),
		zap.Bool("recording", s.rec != nil))

	return s, nil
}

func newLauncher(opts Options) *launcher.Launcher {
	l := launcher.New().
		Leakless(true).
		Headless(opts.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	if bin != "" {
		l = l.Bin(bin)
	}
	if opts.Maximized {
		l = l.Set("start-maximized")
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	return l
}

// Page returns the underlying Rod page
func (s *Session) Page() *rod.Page {
	return s.page
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", url, err)
	}
	return nil
}

// Click waits for selector to be visible, then clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("element not visible: %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Fill replaces the value of the input matched by selector.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text in %s: %w", selector, err)
	}
	if value == "" {
		// Input("") would leave the selection in place.
		p := s.page.Context(ctx)
		for _, e := range backspaceEvents() {
			if err := e.Call(p); err != nil {
				return fmt.Errorf("clear %s: %w", selector, err)
			}
		}
		return nil
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// Hover moves the pointer over selector.
func (s *Session) Hover(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("hover %s: %w", selector, err)
	}
	return nil
}

// Scroll emits a wheel event. Scrolling past the end of the page is a no-op.
func (s *Session) Scroll(ctx context.Context, deltaY float64) error {
	p := s.page.Context(ctx)
	return wheelEvent(p.Mouse.Position(), deltaY).Call(p)
}

func wheelEvent(at proto.Point, deltaY float64) proto.InputDispatchMouseEvent {
	return proto.InputDispatchMouseEvent{
		Type:   proto.InputDispatchMouseEventTypeMouseWheel,
		X:      at.X,
		Y:      at.Y,
		DeltaY: deltaY,
	}
}

func backspaceEvents() []*proto.InputDispatchKeyEvent {
	return []*proto.InputDispatchKeyEvent{
		input.Backspace.Encode(proto.InputDispatchKeyEventTypeKeyDown, 0),
		input.Backspace.Encode(proto.InputDispatchKeyEventTypeKeyUp, 0),
	}
}

// EvalBool evaluates js and reads the result as a boolean.
func (s *Session) EvalBool(ctx context.Context, js string) (bool, error) {
	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// Call evaluates js with JSON-encoded args and discards the result.
func (s *Session) Call(ctx context.Context, js string, args ...any) error {
	_, err := s.page.Context(ctx).Eval(js, args...)
	return err
}

func (s *Session) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el, nil
}

// Close stops the recording and releases page, browser and process. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.rec != nil {
			manifest, err := s.rec.Stop()
			if err != nil {
				errs = append(errs, fmt.Errorf("stop recording: %w", err))
			} else {
				s.logger.Info("Recording saved",
					zap.String("dir", manifest.Dir),
					zap.Int("frames", len(manifest.Frames)),
					zap.String("gif", manifest.GIF))
			}
		}
		errs = append(errs, s.teardown())
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Session) teardown() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			s.logger.Debug("Page close failed", zap.Error(err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		// Only remove the profile directory when it is the launcher's temp dir.
		if s.ownsDir {
			s.launcher.Cleanup()
		}
	}
	return errors.Join(errs...)
}
