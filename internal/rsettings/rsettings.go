// Package rsettings implements RenderSettings.
//
// Grounded on original_source/src/shared/render_settings.py.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package rsettings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/armb-farm/armb/internal/cmn/cos"
)

// DisplayMode mirrors the Blender display-mode enum.
type DisplayMode string

const (
	DisplayWindow      DisplayMode = "WINDOW"
	DisplayNone        DisplayMode = "NONE"
	DisplayScreen      DisplayMode = "SCREEN"
	DisplayArea        DisplayMode = "AREA"
	DisplayPreferences DisplayMode = "PREFERENCES"
)

const (
	defaultResolutionX = 1000
	defaultResolutionY = 1000
	defaultPercentage  = 100
	defaultDisplayMode = DisplayArea
)

// Settings is an immutable bundle of render parameters plus a 32-bit
// SynchronizationID generated at construction: the id lets a worker
// recognize that it has already applied a given settings bundle and
// need not re-apply.
type Settings struct {
	ResolutionX       int
	ResolutionY       int
	Percentage        int
	DisplayMode       DisplayMode
	SynchronizationID uint32
}

// New constructs Settings with a freshly generated SynchronizationID:
// the original always regenerates this id per instance
// (random.getrandbits(32)); deserialization never recovers the
// producing instance's id.
func New(resX, resY, percentage int, mode DisplayMode) Settings {
	return Settings{
		ResolutionX:       resX,
		ResolutionY:       resY,
		Percentage:        percentage,
		DisplayMode:       mode,
		SynchronizationID: cos.Rand32(),
	}
}

// Default returns the settings a freshly-constructed Job falls back to
// when no explicit settings are supplied.
func Default() Settings {
	return New(defaultResolutionX, defaultResolutionY, defaultPercentage, defaultDisplayMode)
}

// Serialize renders the settings as a comma-separated key=value payload.
// The synchronization id is intentionally NOT included: it is
// synchronized by the explicit SYNCHRONIZE/CONFIRM SYNCHRONIZE exchange,
// not by round-tripping through this payload.
func (s Settings) Serialize() []byte {
	fields := []string{
		fmt.Sprintf("resolution_x=%d", s.ResolutionX),
		fmt.Sprintf("resolution_y=%d", s.ResolutionY),
		fmt.Sprintf("percentage=%d", s.Percentage),
		fmt.Sprintf("display_mode=%s", s.DisplayMode),
	}
	return []byte(strings.Join(fields, ","))
}

// Deserialize parses a serialized payload, tolerating missing keys
// (defaults apply) and ignoring unknown keys. The resulting Settings
// carries a freshly generated SynchronizationID: the wire payload
// never encodes one, matching Serialize's omission above.
func Deserialize(payload []byte) Settings {
	resX, resY, pct := defaultResolutionX, defaultResolutionY, defaultPercentage
	mode := defaultDisplayMode

	for _, field := range strings.Split(string(payload), ",") {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "resolution_x":
			if n, err := strconv.Atoi(val); err == nil {
				resX = n
			}
		case "resolution_y":
			if n, err := strconv.Atoi(val); err == nil {
				resY = n
			}
		case "percentage":
			if n, err := strconv.Atoi(val); err == nil {
				pct = n
			}
		case "display_mode":
			mode = DisplayMode(val)
		}
	}
	return New(resX, resY, pct, mode)
}
