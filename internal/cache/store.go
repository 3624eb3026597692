package cache

import (
	"context"
	"io"

	"git.home.luguber.info/inful/bbreport/internal/model"
)

// BuilderRow is a row of the builders relation.
type BuilderRow struct {
	Name      string
	Host      string
	Branch    string
	LastBuild int
	Status    model.Status
}

// BuildRow is a row of the builds relation.
type BuildRow struct {
	Builder  string
	Number   int
	Revision int
	Result   model.Status
	Message  string
}

// RuleRow is a known-issue rule. Empty patterns match anything.
type RuleRow struct {
	Issue   string
	Test    string
	Message string
	Builder string
}

// Store is the reconciliation cache used by builders and builds.
type Store interface {
	Builders(ctx context.Context) ([]BuilderRow, error)
	// PutBuilder inserts or replaces a builder row.
	PutBuilder(ctx context.Context, b BuilderRow) error

	GetBuild(ctx context.Context, builder string, number int) (BuildRow, bool, error)
	// PutBuild inserts a build with its failed tests. Existing rows are kept
	// unchanged and negative build numbers are ignored.
	PutBuild(ctx context.Context, b BuildRow, failures model.TestSet) error
	Failures(ctx context.Context, builder string, number int) (model.TestSet, error)
	// Evict removes builds and failures numbered below the given build.
	Evict(ctx context.Context, builder string, below int) (int64, error)

	Rules(ctx context.Context) ([]RuleRow, error)
	PutRule(ctx context.Context, r RuleRow) error
	DeleteRules(ctx context.Context, issue string) (int64, error)

	// Load replaces the store content with a snapshot.
	Load(ctx context.Context, r io.Reader) error
	// Dump writes the store content as a snapshot.
	Dump(ctx context.Context, w io.Writer) error
	Close() error
}

// Disabled is a Store that keeps nothing.
type Disabled struct{}

var _ Store = Disabled{}

func (Disabled) Builders(context.Context) ([]BuilderRow, error) { return nil, nil }
func (Disabled) PutBuilder(context.Context, BuilderRow) error   { return nil }
func (Disabled) GetBuild(context.Context, string, int) (BuildRow, bool, error) {
	return BuildRow{}, false, nil
}
func (Disabled) PutBuild(context.Context, BuildRow, model.TestSet) error { return nil }
func (Disabled) Failures(context.Context, string, int) (model.TestSet, error) {
	return nil, nil
}
func (Disabled) Evict(context.Context, string, int) (int64, error)  { return 0, nil }
func (Disabled) Rules(context.Context) ([]RuleRow, error)           { return nil, nil }
func (Disabled) PutRule(context.Context, RuleRow) error             { return nil }
func (Disabled) DeleteRules(context.Context, string) (int64, error) { return 0, nil }
func (Disabled) Load(context.Context, io.Reader) error              { return nil }
func (Disabled) Dump(context.Context, io.Writer) error              { return nil }
func (Disabled) Close() error                                       { return nil }
