package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/stealth"
)

// styleProbeJS samples computed styles from a handful of representative
// elements. The result is a flat token map; keys follow the
// category.property convention used across the design-system artifact.
const styleProbeJS = `() => {
	const out = {};
	const body = getComputedStyle(document.body);
	out["color.text"] = body.color;
	out["color.background"] = body.backgroundColor;
	out["font.family"] = body.fontFamily;
	out["font.size"] = body.fontSize;
	out["font.lineHeight"] = body.lineHeight;

	const h1 = document.querySelector("h1");
	if (h1) {
		const hs = getComputedStyle(h1);
		out["heading.fontSize"] = hs.fontSize;
		out["heading.fontWeight"] = hs.fontWeight;
		out["heading.color"] = hs.color;
	}

	const link = document.querySelector("a");
	if (link) {
		out["color.link"] = getComputedStyle(link).color;
	}

	const btn = document.querySelector("button, [role='button'], input[type='submit']");
	if (btn) {
		const bs = getComputedStyle(btn);
		out["button.background"] = bs.backgroundColor;
		out["button.color"] = bs.color;
		out["button.borderRadius"] = bs.borderRadius;
		out["button.padding"] = bs.padding;
	}

	return out;
}`

// StyleExtractor derives design tokens from a page's computed styles.
type StyleExtractor struct {
	manager *Manager
	timeout time.Duration
	logger  *slog.Logger
}

// NewStyleExtractor creates a StyleExtractor on top of a started Manager.
func NewStyleExtractor(mgr *Manager, timeout time.Duration, logger *slog.Logger) *StyleExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StyleExtractor{manager: mgr, timeout: timeout, logger: logger}
}

// Extract navigates to url and samples computed styles into a token map.
// The viewport screenshot is unused here; the page itself is the source.
func (e *StyleExtractor) Extract(ctx context.Context, url string, _ []byte) (map[string]string, error) {
	b := e.manager.Browser()
	if b == nil {
		return nil, &Error{URL: url, Op: "page", Err: fmt.Errorf("browser not started")}
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, &Error{URL: url, Op: "page", Err: err}
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return nil, &Error{URL: url, Op: "navigate", Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return nil, &Error{URL: url, Op: "wait load", Err: err}
	}

	res, err := p.Eval(styleProbeJS)
	if err != nil {
		return nil, &Error{URL: url, Op: "style probe", Err: err}
	}

	tokens := make(map[string]string)
	for key, val := range res.Value.Map() {
		if s := val.Str(); s != "" {
			tokens[key] = s
		}
	}

	e.logger.Debug("capture: extracted tokens", "url", url, "count", len(tokens))
	return tokens, nil
}
