package buildbot

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Source is the remote status service as seen by the fleet.
type Source interface {
	Builders(ctx context.Context) ([]RemoteBuilder, error)
	LastBuilds(ctx context.Context, k int) ([]BuildRecord, error)
	BuildPage(ctx context.Context, builder string, number int) (string, error)
	StepLog(ctx context.Context, builder string, number int, step string) (string, error)
}

// RemoteBuilder is one row of the builder overview page.
type RemoteBuilder struct {
	Name      string
	LastBuild int // -1 when the page has no link to a finished build
}

// BuildRecord is one tuple of the batched last-builds query.
type BuildRecord struct {
	Builder  string
	Number   int
	Start    time.Time
	Revision string
	Result   string
	Text     []string
	End      time.Time
}

// Message joins the text lines buildbot reports for the build.
func (r BuildRecord) Message() string {
	return strings.Join(strings.Fields(strings.Join(r.Text, " ")), " ")
}

// RevisionNumber returns the numeric revision or 0 when it is absent or not
// a number.
func (r BuildRecord) RevisionNumber() int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Revision))
	if err != nil {
		return 0
	}
	return n
}
