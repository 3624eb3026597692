package report

import (
	"os"

	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/bbreport/internal/config"
)

// ColorEnabled decides whether output to f is styled. Auto mode styles
// terminals unless NO_COLOR is set.
func ColorEnabled(mode config.ColorMode, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
