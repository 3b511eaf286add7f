package agent

import (
	"context"

	"github.com/hairizuan-noorazman/stormbot/browser"
)

const performanceScript = `(() => {
  const nav = performance.getEntriesByType("navigation")[0];
  const paint = performance.getEntriesByType("paint");
  const fp = paint.find((e) => e.name === "first-paint");
  const fcp = paint.find((e) => e.name === "first-contentful-paint");
  const lcp = performance.getEntriesByType("largest-contentful-paint");
  return {
    domContentLoaded: nav ? nav.domContentLoadedEventEnd - nav.domContentLoadedEventStart : 0,
    loadComplete: nav ? nav.loadEventEnd - nav.loadEventStart : 0,
    firstPaint: fp ? fp.startTime : 0,
    firstContentfulPaint: fcp ? fcp.startTime : 0,
    largestContentfulPaint: lcp.length ? lcp[lcp.length - 1].startTime : 0
  };
})()`

const heightScript = `Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0)`

// collectPerformance returns zeros when timing data is unavailable.
func collectPerformance(ctx context.Context, page browser.Page) Performance {
	var p Performance
	if err := page.Evaluate(ctx, performanceScript, &p); err != nil {
		return Performance{}
	}
	return p
}

func pageHeight(ctx context.Context, page browser.Page) int {
	var h float64
	if err := page.Evaluate(ctx, heightScript, &h); err != nil {
		return 0
	}
	return int(h)
}
