package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuilder    = "builder"
	KeyBuild      = "build"
	KeyRevision   = "revision"
	KeyResult     = "result"
	KeyStatus     = "status"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyCount      = "count"
	KeyStep       = "step"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Builder(name string) slog.Attr   { return slog.String(KeyBuilder, name) }
func Build(number int) slog.Attr      { return slog.Int(KeyBuild, number) }
func Revision(rev int) slog.Attr      { return slog.Int(KeyRevision, rev) }
func Result(r string) slog.Attr       { return slog.String(KeyResult, r) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
