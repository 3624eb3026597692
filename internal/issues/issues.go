package issues

import (
	"context"
	"regexp"
	"sort"

	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

type rule struct {
	issue   string
	test    *regexp.Regexp
	message *regexp.Regexp
	builder *regexp.Regexp
}

func (r rule) matches(builder, test, message string) bool {
	if r.builder != nil && !r.builder.MatchString(builder) {
		return false
	}
	if r.test != nil && !r.test.MatchString(test) {
		return false
	}
	if r.message != nil && !r.message.MatchString(message) {
		return false
	}
	return true
}

// Matcher holds compiled rules.
type Matcher struct {
	rules []rule
}

// Compile builds a matcher from stored rules.
func Compile(rows []cache.RuleRow) (*Matcher, error) {
	m := &Matcher{rules: make([]rule, 0, len(rows))}
	for _, row := range rows {
		r := rule{issue: row.Issue}
		var err error
		if r.test, err = compile(row.Issue, "test", row.Test); err != nil {
			return nil, err
		}
		if r.message, err = compile(row.Issue, "message", row.Message); err != nil {
			return nil, err
		}
		if r.builder, err = compile(row.Issue, "builder", row.Builder); err != nil {
			return nil, err
		}
		m.rules = append(m.rules, r)
	}
	return m, nil
}

func compile(issue, field, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid issue rule pattern").
			WithContext("issue", issue).
			WithContext("field", field).
			Build()
	}
	return re, nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Match returns the sorted ids of the issues matching a failed build. Each
// failed test is tried on its own; a build without failed tests only matches
// rules that leave the test pattern empty.
func (m *Matcher) Match(builder string, tests model.TestSet, message string) []string {
	if m.Len() == 0 {
		return nil
	}
	found := map[string]bool{}
	for _, r := range m.rules {
		if len(tests) == 0 {
			if r.test == nil && r.matches(builder, "", message) {
				found[r.issue] = true
			}
			continue
		}
		for _, test := range tests {
			if r.matches(builder, test, message) {
				found[r.issue] = true
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load compiles the rules held by the store.
func Load(ctx context.Context, store cache.Store) (*Matcher, error) {
	rows, err := store.Rules(ctx)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "failed to read issue rules").Warning().Build()
	}
	return Compile(rows)
}

// Add validates a rule and stores it. Adding an identical rule twice is a
// no-op.
func Add(ctx context.Context, store cache.Store, r config.IssueRule) error {
	if err := config.ValidateIssueRule(r); err != nil {
		return err
	}
	row := cache.RuleRow{Issue: r.ID, Test: r.Test, Message: r.Message, Builder: r.Builder}
	if err := store.PutRule(ctx, row); err != nil {
		return errors.WrapError(err, errors.CategoryCache, "failed to store issue rule").
			WithContext("issue", r.ID).Build()
	}
	return nil
}

// Seed stores the configured rules. Rules are validated when the
// configuration loads.
func Seed(ctx context.Context, store cache.Store, rules []config.IssueRule) error {
	for _, r := range rules {
		if err := Add(ctx, store, r); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes every rule of an issue and returns how many were removed.
func Remove(ctx context.Context, store cache.Store, issue string) (int64, error) {
	n, err := store.DeleteRules(ctx, issue)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryCache, "failed to delete issue rules").
			WithContext("issue", issue).Build()
	}
	return n, nil
}
