// CLAUDE:SUMMARY Viewport presets (desktop, tablet, mobile) with matching user agents and WxH parsing.
package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Viewport is a rendering surface size, optionally carrying a preset label
// and the user agent appropriate for that device class.
type Viewport struct {
	Label       string
	Width       int
	Height      int
	UserAgent   string
	ScaleFactor float64 // 0 means 1.0
	Mobile      bool
}

// Presets mirror the device classes the tool supports. Desktop is a fixed
// default rather than a probe of the host screen: headless runs have no
// meaningful screen, and a run's viewport must be explicit configuration.
var presets = map[string]Viewport{
	"desktop": {
		Label:     "desktop",
		Width:     1920,
		Height:    1080,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	},
	"tablet": {
		Label:     "tablet",
		Width:     768,
		Height:    1024,
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		Mobile:    true,
	},
	"mobile": {
		Label:       "mobile",
		Width:       375,
		Height:      667,
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
		ScaleFactor: 2.0,
		Mobile:      true,
	},
}

// ParseViewport resolves a preset name ("desktop", "tablet", "mobile") or an
// explicit "WxH" spec into a Viewport.
func ParseViewport(spec string) (Viewport, error) {
	spec = strings.TrimSpace(strings.ToLower(spec))
	if spec == "" {
		return presets["desktop"], nil
	}
	if vp, ok := presets[spec]; ok {
		return vp, nil
	}

	w, h, ok := strings.Cut(spec, "x")
	if ok {
		width, errW := strconv.Atoi(w)
		height, errH := strconv.Atoi(h)
		if errW == nil && errH == nil && width > 0 && height > 0 {
			return Viewport{
				Label:     spec,
				Width:     width,
				Height:    height,
				UserAgent: presets["desktop"].UserAgent,
			}, nil
		}
	}
	return Viewport{}, fmt.Errorf("session: invalid viewport %q (want desktop|tablet|mobile|WxH)", spec)
}
