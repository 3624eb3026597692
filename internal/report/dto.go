package report

import (
	"time"

	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/issues"
)

// BuilderView is the serialized form of a builder report.
type BuilderView struct {
	Name      string      `json:"name" yaml:"name"`
	Host      string      `json:"host" yaml:"host"`
	Branch    string      `json:"branch" yaml:"branch"`
	Status    string      `json:"status" yaml:"status"`
	LastBuild int         `json:"last_build" yaml:"last_build"`
	Builds    []BuildView `json:"builds" yaml:"builds"`
}

// BuildView is the serialized form of a build. Unresolved slots are omitted.
type BuildView struct {
	Number      int        `json:"number" yaml:"number"`
	Revision    int        `json:"revision,omitempty" yaml:"revision,omitempty"`
	Result      string     `json:"result" yaml:"result"`
	Message     string     `json:"message,omitempty" yaml:"message,omitempty"`
	FailedTests []string   `json:"failed_tests,omitempty" yaml:"failed_tests,omitempty"`
	Issues      []string   `json:"issues,omitempty" yaml:"issues,omitempty"`
	Cached      bool       `json:"cached" yaml:"cached"`
	Start       *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End         *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

func viewOf(r fleet.Report, m *issues.Matcher) BuilderView {
	v := BuilderView{
		Name:      r.Builder.Name,
		Host:      r.Builder.Host,
		Branch:    r.Builder.Branch,
		Status:    string(r.Status),
		LastBuild: r.Builder.LastBuild,
		Builds:    []BuildView{},
	}
	for _, b := range r.Builds {
		if b == nil {
			continue
		}
		bv := BuildView{
			Number:      b.Number,
			Revision:    b.Revision,
			Result:      string(b.Result),
			Message:     b.Message,
			FailedTests: []string(b.FailedTests),
			Cached:      b.Cached(),
			Start:       timePtr(b.Start),
			End:         timePtr(b.End),
		}
		if b.Result.IsFailure() {
			bv.Issues = m.Match(b.Builder, b.FailedTests, b.Message)
		}
		v.Builds = append(v.Builds, bv)
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
