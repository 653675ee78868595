// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package colors

// NOTE: this package is used by various packages and should really have NO external dependency

import (
	"github.com/muesli/termenv"
)

// Color Theme
type Theme struct {
	// messages
	Primary   termenv.Color
	Secondary termenv.Color
	Disabled  termenv.Color
	Error     termenv.Color
	Success   termenv.Color

	// severity
	Critical termenv.Color
	High     termenv.Color
	Medium   termenv.Color
	Low      termenv.Color
	Good     termenv.Color
	Unknown  termenv.Color
}

// DefaultColorTheme is initialized for the color profile of the attached terminal
var DefaultColorTheme Theme

func init() {
	profile := termenv.ColorProfile()
	DefaultColorTheme = Theme{
		Primary:   profile.Color("#9a65fa"),
		Secondary: profile.Color("#30b0ff"),
		Disabled:  profile.Color("#7a7a7a"),
		Error:     profile.Color("#ff5252"),
		Success:   profile.Color("#41b658"),

		Critical: profile.Color("#ff5252"),
		High:     profile.Color("#fc8c64"),
		Medium:   profile.Color("#fcd34d"),
		Low:      profile.Color("#7aa2f7"),
		Good:     profile.Color("#41b658"),
		Unknown:  profile.Color("#7a7a7a"),
	}
}

func ProfileName(profile termenv.Profile) string {
	switch profile {
	case termenv.Ascii:
		return "Ascii"
	case termenv.ANSI:
		return "ANSI"
	case termenv.ANSI256:
		return "ANSI256"
	case termenv.TrueColor:
		return "TrueColor"
	default:
		return "unknown"
	}
}
