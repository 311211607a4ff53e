package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters for the preview table.
const (
	DefaultWidth      = 1200
	DefaultHeight     = 800
	DefaultTimeoutSec = 30
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// OutputPath is where the PNG screenshot will be written. Empty means
	// the PNG is only returned.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used. The screenshot covers the
	// full page, so Height only sets the initial viewport.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero, a sane default
	// (DefaultTimeoutSec) is used.
	Timeout time.Duration
}

// CapturePNG launches a headless Chromium instance via chromedp, loads
// page (a complete HTML document, see RenderPreviewHTML) from a data URL,
// waits for the DOM to signal that rendering is complete, and returns a
// full-page PNG screenshot.
//
// Rendering-complete condition:
//   - The page root element exposes a data-ready attribute:
//     <main data-ready="true" ...>
//
// Chromium must be installed on the host; chromedp finds it on PATH.
func CapturePNG(parentCtx context.Context, page []byte, opts CaptureOptions) ([]byte, error) {
	if len(page) == 0 {
		return nil, fmt.Errorf("capture: page is empty")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	// Apply timeout to the entire capture sequence.
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(dataURL(page)),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return nil, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}
	return png, nil
}

func dataURL(page []byte) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(page)
}
