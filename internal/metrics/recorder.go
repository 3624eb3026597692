package metrics

import "time"

// FetchKind enumerates the remote calls made against the status service.
type FetchKind string

const (
	FetchBuilders   FetchKind = "builders"
	FetchLastBuilds FetchKind = "last_builds"
	FetchBuildPage  FetchKind = "build_page"
	FetchStepLog    FetchKind = "step_log"
)

// Recorder defines observability hooks for remote fetches, cache reconciliation
// and classification. Implementations must tolerate nil receivers.
type Recorder interface {
	ObserveFetch(kind FetchKind, d time.Duration, ok bool)
	IncFetchRetry(kind FetchKind)
	IncCacheLookup(hit bool)
	IncClassification(result string)
	SetBuildersByStatus(counts map[string]int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFetch(FetchKind, time.Duration, bool) {}
func (NoopRecorder) IncFetchRetry(FetchKind)                     {}
func (NoopRecorder) IncCacheLookup(bool)                         {}
func (NoopRecorder) IncClassification(string)                    {}
func (NoopRecorder) SetBuildersByStatus(map[string]int)          {}
