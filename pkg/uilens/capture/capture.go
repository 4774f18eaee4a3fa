package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// WaitPolicy selects how long navigation waits before the page is
// considered ready for capture.
type WaitPolicy string

const (
	// WaitLoad waits for the window load event.
	WaitLoad WaitPolicy = "load"
	// WaitNetworkIdle additionally waits for in-flight requests to settle.
	WaitNetworkIdle WaitPolicy = "networkidle"
)

// Request describes one capture of a URL.
type Request struct {
	URL            string
	ViewportWidth  int
	ViewportHeight int
	WaitPolicy     WaitPolicy
	Timeout        time.Duration

	// MaxHeight caps the full-page canvas in pixels so pathological
	// infinite-scroll pages cannot produce unbounded images.
	MaxHeight int
}

func (r *Request) defaults() {
	if r.ViewportWidth <= 0 {
		r.ViewportWidth = 1280
	}
	if r.ViewportHeight <= 0 {
		r.ViewportHeight = 800
	}
	if r.WaitPolicy == "" {
		r.WaitPolicy = WaitLoad
	}
	if r.Timeout <= 0 {
		r.Timeout = 30 * time.Second
	}
	if r.MaxHeight <= 0 {
		r.MaxHeight = 20000
	}
}

// Screenshots is the pair of images one capture produces.
type Screenshots struct {
	Viewport []byte
	FullPage []byte
}

// Error wraps a capture failure with the URL and the operation that failed.
type Error struct {
	URL string
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Capturer takes screenshots through a shared browser Manager.
type Capturer struct {
	manager *Manager
	logger  *slog.Logger
}

// NewCapturer creates a Capturer on top of an already started Manager.
func NewCapturer(mgr *Manager, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{manager: mgr, logger: logger}
}

// Capture navigates to req.URL and returns the viewport screenshot plus
// a stitched full-page screenshot. The page is released on all paths.
func (c *Capturer) Capture(ctx context.Context, req Request) (*Screenshots, error) {
	req.defaults()

	b := c.manager.Browser()
	if b == nil {
		return nil, &Error{URL: req.URL, Op: "page", Err: fmt.Errorf("browser not started")}
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, &Error{URL: req.URL, Op: "page", Err: err}
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             req.ViewportWidth,
		Height:            req.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, &Error{URL: req.URL, Op: "viewport", Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	p := page.Context(navCtx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, &Error{URL: req.URL, Op: "navigate", Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return nil, &Error{URL: req.URL, Op: "wait load", Err: err}
	}
	if req.WaitPolicy == WaitNetworkIdle {
		wait := p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
		wait()
	}

	viewport, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, &Error{URL: req.URL, Op: "screenshot", Err: err}
	}

	fullPage, err := c.captureFullPage(p, req, viewport)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("capture: complete",
		"url", req.URL,
		"viewport_bytes", len(viewport),
		"fullpage_bytes", len(fullPage))

	return &Screenshots{Viewport: viewport, FullPage: fullPage}, nil
}

// pageProxy is the subset of rod.Page the full-page loop uses.
type pageProxy interface {
	Eval(js string, jsArgs ...interface{}) (*proto.RuntimeRemoteObject, error)
	Screenshot(fullpage bool, req *proto.PageCaptureScreenshot) ([]byte, error)
}

func (c *Capturer) captureFullPage(p pageProxy, req Request, viewport []byte) ([]byte, error) {
	res, err := p.Eval(`() => document.documentElement.scrollHeight`)
	if err != nil {
		return nil, &Error{URL: req.URL, Op: "measure", Err: err}
	}
	totalHeight := int(res.Value.Int())

	slices := SliceCount(totalHeight, req.MaxHeight, req.ViewportHeight)
	if slices <= 1 {
		return viewport, nil
	}

	// Scroll back to origin no matter how capture ends.
	defer func() {
		if _, err := p.Eval(`() => window.scrollTo(0, 0)`); err != nil {
			c.logger.Warn("capture: scroll restore failed", "url", req.URL, "error", err)
		}
	}()

	height := totalHeight
	if height > req.MaxHeight {
		height = req.MaxHeight
	}

	images := make([]image.Image, 0, slices)
	for i := 0; i < slices; i++ {
		y := i * req.ViewportHeight
		if _, err := p.Eval(`(y) => window.scrollTo(0, y)`, y); err != nil {
			return nil, &Error{URL: req.URL, Op: "scroll", Err: err}
		}
		time.Sleep(100 * time.Millisecond)

		data, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			return nil, &Error{URL: req.URL, Op: "screenshot slice", Err: err}
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &Error{URL: req.URL, Op: "decode slice", Err: err}
		}
		images = append(images, img)
	}

	canvas := Stitch(images, height)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, &Error{URL: req.URL, Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
