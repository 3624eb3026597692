package fleet

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
)

// Selection narrows the builders and builds a collection reports on.
type Selection struct {
	// Name is a case-insensitive glob over builder names.
	Name string
	// Branch must equal the builder branch exactly.
	Branch string
	// Build restricts the report to a single build number.
	Build *int
	// Failures keeps only builds whose failed tests include all of these.
	Failures []string
}

// Validate checks the bracket and escape syntax of the name glob.
func (s Selection) Validate() error {
	if s.Name == "" {
		return nil
	}
	if _, err := path.Match(s.Name, ""); err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid builder name pattern").
			Fatal().WithContext("pattern", s.Name).Build()
	}
	return nil
}

// MatchBuilder reports whether b passes the name and branch filters.
func (s Selection) MatchBuilder(b *Builder) bool {
	if s.Branch != "" && b.Branch != s.Branch {
		return false
	}
	if s.Name != "" {
		ok, err := doublestar.Match(strings.ToLower(s.Name), strings.ToLower(b.Name))
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// MatchBuild reports whether a build passes the failed-test filter.
func (s Selection) MatchBuild(build *Build) bool {
	if len(s.Failures) == 0 {
		return true
	}
	return build != nil && build.FailedTests.ContainsAll(s.Failures)
}
