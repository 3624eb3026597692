package buildbot

import (
	"context"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
)

// ErrOffline is returned by Offline for every call.
var ErrOffline = errors.NetworkError("remote access disabled").WithRetry(errors.RetryNever).Build()

// Offline is a Source that never reaches the network. It backs --cache-only
// runs, where only cached builds can be resolved.
type Offline struct{}

var _ Source = Offline{}

func (Offline) Builders(context.Context) ([]RemoteBuilder, error)      { return nil, ErrOffline }
func (Offline) LastBuilds(context.Context, int) ([]BuildRecord, error) { return nil, ErrOffline }
func (Offline) BuildPage(context.Context, string, int) (string, error) { return "", ErrOffline }
func (Offline) StepLog(context.Context, string, int, string) (string, error) {
	return "", ErrOffline
}
