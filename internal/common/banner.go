package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the startup banner for a CLI command.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	version := GetVersion()
	commit := GetGitCommit()

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n", hr)
	fmt.Fprintf(w, "%s  HOLDWISE  13F portfolio aggregation%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s\n", hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", version},
		{"Commit", commit},
		{"Environment", config.Environment},
		{"Storage", config.Storage.Backend},
		{"Cache", config.Cache.Backend},
		{"Managers", fmt.Sprintf("%d", len(config.Managers))},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "%s\n\n", hr)

	logger.Debug().
		Str("version", version).
		Str("commit", commit).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Backend).
		Msg("holdwise started")
}
