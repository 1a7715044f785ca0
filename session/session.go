// CLAUDE:SUMMARY Per-page session: stealth navigation, scroll/measure/capture primitives, geometry probe, interstitial dismissal.
package session

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/viewdiff/scrollplan"
)

// Session wraps one navigated Rod page sized to a fixed viewport. All
// methods are driven sequentially by the comparison orchestrator; a Session
// is not safe for concurrent use with itself, only with other Sessions.
type Session struct {
	page     *rod.Page
	url      string
	viewport Viewport
	logger   *slog.Logger
}

// Open creates a stealth page, applies the viewport and user agent,
// navigates to pageURL, and waits for the load event. The returned session
// is ready for geometry probing and capture.
func Open(ctx context.Context, mgr *Manager, pageURL string, vp Viewport) (*Session, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("session: no active browser")
	}
	log := mgr.cfg.Logger

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("session: create page: %w", err)
	}

	if vp.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: vp.UserAgent}); err != nil {
			log.Warn("session: set user agent failed", "url", pageURL, "error", err)
		}
	}

	scale := vp.ScaleFactor
	if scale <= 0 {
		scale = 1.0
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: scale,
		Mobile:            vp.Mobile,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("session: set viewport %dx%d: %w", vp.Width, vp.Height, err)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("session: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("session: wait load timeout", "url", pageURL, "error", err)
	}

	return &Session{page: page, url: pageURL, viewport: vp, logger: log}, nil
}

// URL returns the session's page URL.
func (s *Session) URL() string { return s.url }

// Viewport returns the configured viewport.
func (s *Session) Viewport() Viewport { return s.viewport }

// Close closes the underlying page.
func (s *Session) Close() error {
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}

// ScrollTo requests an instantaneous scroll to (x, y). Instant behaviour
// keeps timing deterministic: an animated scroll would still be in flight
// when the settle interval expires.
func (s *Session) ScrollTo(ctx context.Context, x, y int) error {
	_, err := s.page.Context(ctx).Eval(
		`(x, y) => window.scrollTo({top: y, left: x, behavior: 'instant'})`, x, y)
	if err != nil {
		return fmt.Errorf("session: scroll to %d,%d: %w", x, y, err)
	}
	return nil
}

// ScrollPosition reads back the actual scroll offset. Pages with sticky
// headers or scroll clamping may not land exactly where requested.
func (s *Session) ScrollPosition(ctx context.Context) (x, y int, err error) {
	res, err := s.page.Context(ctx).Eval(
		`() => [window.pageXOffset || document.documentElement.scrollLeft || 0,
		        window.pageYOffset || document.documentElement.scrollTop || 0]`)
	if err != nil {
		return 0, 0, fmt.Errorf("session: read scroll position: %w", err)
	}
	arr := res.Value.Arr()
	if len(arr) != 2 {
		return 0, 0, fmt.Errorf("session: malformed scroll position %v", res.Value)
	}
	return arr[0].Int(), arr[1].Int(), nil
}

// ContentHeight measures the total scrollable document height. The max over
// body and documentElement metrics matches what browsers actually allow
// scrolling over; any single property underreports on some layouts.
func (s *Session) ContentHeight(ctx context.Context) (int, error) {
	res, err := s.page.Context(ctx).Eval(`() => Math.max(
		document.body.scrollHeight,
		document.documentElement.scrollHeight,
		document.body.offsetHeight,
		document.documentElement.offsetHeight)`)
	if err != nil {
		return 0, fmt.Errorf("session: read content height: %w", err)
	}
	return res.Value.Int(), nil
}

// ViewportSize reads the rendered viewport dimensions.
func (s *Session) ViewportSize(ctx context.Context) (w, h int, err error) {
	res, err := s.page.Context(ctx).Eval(`() => [window.innerWidth, window.innerHeight]`)
	if err != nil {
		return 0, 0, fmt.Errorf("session: read viewport size: %w", err)
	}
	arr := res.Value.Arr()
	if len(arr) != 2 {
		return 0, 0, fmt.Errorf("session: malformed viewport size %v", res.Value)
	}
	return arr[0].Int(), arr[1].Int(), nil
}

// CaptureViewport captures the visible viewport as a decoded bitmap.
func (s *Session) CaptureViewport(ctx context.Context) (image.Image, error) {
	buf, err := s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("session: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("session: decode screenshot: %w", err)
	}
	return img, nil
}

// Geometry resets scroll to the top, waits for layout to settle, and
// measures the page. The reset is unconditional: pages restore saved scroll
// positions on load (anchors, history state), and measuring from a non-zero
// offset corrupts every subsequent offset in the run.
func (s *Session) Geometry(ctx context.Context, settle time.Duration) (scrollplan.Geometry, error) {
	if err := s.ScrollTo(ctx, 0, 0); err != nil {
		return scrollplan.Geometry{}, err
	}
	if err := sleepCtx(ctx, settle); err != nil {
		return scrollplan.Geometry{}, err
	}

	height, err := s.ContentHeight(ctx)
	if err != nil {
		return scrollplan.Geometry{}, err
	}
	vw, vh, err := s.ViewportSize(ctx)
	if err != nil {
		return scrollplan.Geometry{}, err
	}

	g := scrollplan.Geometry{ContentHeight: height, ViewportWidth: vw, ViewportHeight: vh}
	s.logger.Debug("session: geometry measured",
		"url", s.url, "content_height", height, "viewport", fmt.Sprintf("%dx%d", vw, vh))
	return g, nil
}

// Overlay close-control signatures tried in order before falling back to a
// generic Escape keystroke. Covers the cookie walls and newsletter modals
// that most often obscure above-the-fold content.
var interstitialSelectors = []string{
	`#onetrust-accept-btn-handler`,
	`button[aria-label="Close"]`,
	`button[aria-label="close"]`,
	`[class*="cookie"] button[class*="accept"]`,
	`[class*="modal"] [class*="close"]`,
	`[id*="popup"] [class*="close"]`,
}

// DismissInterstitial checks for a known overlay and tries to close it:
// first a targeted click, then an Escape keystroke. A stuck interstitial is
// logged and tolerated; it degrades comparison accuracy for this session but
// must never abort the run.
func (s *Session) DismissInterstitial(ctx context.Context) {
	page := s.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	for _, sel := range interstitialSelectors {
		el, err := page.Element(sel)
		if err != nil {
			continue
		}
		if visible, _ := el.Visible(); !visible {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			s.logger.Debug("session: interstitial click failed", "selector", sel, "error", err)
			continue
		}
		s.logger.Info("session: interstitial dismissed", "url", s.url, "selector", sel)
		return
	}

	// Generic fallback: most modal frameworks close on Escape. Harmless when
	// no overlay is present.
	if err := s.page.Context(ctx).Keyboard.Press(input.Escape); err != nil {
		s.logger.Warn("session: interstitial escape keystroke failed", "url", s.url, "error", err)
	}
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
