package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/issues"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

// Options configure a Renderer.
type Options struct {
	Format config.OutputFormat
	Color  bool
	// Issues annotates failed builds; nil disables annotation.
	Issues *issues.Matcher
	Now    func() time.Time
}

// Renderer writes reports to an output stream.
type Renderer struct {
	w       io.Writer
	opts    Options
	palette palette
}

// New creates a renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = config.OutputTable
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lr := lipgloss.NewRenderer(w)
	if opts.Color {
		lr.SetColorProfile(termenv.ANSI)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{w: w, opts: opts, palette: newPalette(lr, opts.Color)}
}

// Render writes the reports in the configured format.
func (r *Renderer) Render(reports []fleet.Report) error {
	switch r.opts.Format {
	case config.OutputJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.views(reports))
	case config.OutputYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(r.views(reports)); err != nil {
			return err
		}
		return enc.Close()
	case config.OutputTable:
		return r.table(reports)
	default:
		return fmt.Errorf("unsupported output format %q", r.opts.Format)
	}
}

func (r *Renderer) views(reports []fleet.Report) []BuilderView {
	out := make([]BuilderView, 0, len(reports))
	for _, rep := range reports {
		out = append(out, viewOf(rep, r.opts.Issues))
	}
	return out
}

func (r *Renderer) table(reports []fleet.Report) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(r.w, "No builders match.")
		return err
	}

	builders := uitable.New()
	builders.AddRow("", "BUILDER", "BRANCH", "BUILDS", "LAST", "AGE")
	failures := uitable.New()
	failures.MaxColWidth = 60
	failures.Wrap = true
	failures.AddRow("BUILDER", "BUILD", "REV", "RESULT", "MESSAGE", "TESTS", "ISSUES")
	failed := 0

	plain := palette{}
	for _, rep := range reports {
		builders.AddRow(
			plain.symbol(rep.Status),
			rep.Builder.Name,
			rep.Builder.Branch,
			plain.strip(rep.Builds),
			lastBuild(rep.Builder.LastBuild),
			r.age(rep.Builds),
		)
		for _, b := range rep.Builds {
			if b == nil || !b.Result.IsFailure() {
				continue
			}
			failed++
			failures.AddRow(
				b.Builder,
				strconv.Itoa(b.Number),
				revision(b.Revision),
				string(b.Result),
				b.Message,
				strings.Join(b.FailedTests, " "),
				strings.Join(r.opts.Issues.Match(b.Builder, b.FailedTests, b.Message), " "),
			)
		}
	}

	layout := builders.String()
	if r.opts.Color {
		layout = r.colorize(layout, builders.Separator, reports)
	}
	if _, err := fmt.Fprintln(r.w, layout); err != nil {
		return err
	}
	if failed > 0 {
		if _, err := fmt.Fprintf(r.w, "\n%s\n", failures); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(r.w, "\n%s\n", Summary(reports))
	return err
}

// colorize styles the status and build columns of a laid out builders
// table. Only the symbols are wrapped in escape codes, the padding stays as
// laid out.
func (r *Renderer) colorize(layout, sep string, reports []fleet.Report) string {
	lines := strings.Split(layout, "\n")
	if len(lines) != len(reports)+1 {
		return layout
	}
	for i, rep := range reports {
		cells := strings.Split(lines[i+1], sep)
		if len(cells) != 6 || len(cells[0]) < 1 || len(cells[3]) < len(rep.Builds) {
			continue
		}
		cells[0] = r.palette.symbol(rep.Status) + cells[0][1:]
		cells[3] = r.palette.strip(rep.Builds) + cells[3][len(rep.Builds):]
		lines[i+1] = strings.Join(cells, sep)
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) age(builds []*fleet.Build) string {
	for _, b := range builds {
		if b == nil {
			continue
		}
		ts := b.End
		if ts.IsZero() {
			ts = b.Start
		}
		if !ts.IsZero() {
			return humanize.RelTime(ts, r.opts.Now(), "ago", "from now")
		}
	}
	return ""
}

func lastBuild(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func revision(rev int) string {
	if rev == 0 {
		return ""
	}
	return "r" + strconv.Itoa(rev)
}

// Summary counts builders per status, e.g. "4 builders: 3 success, 1 failure".
func Summary(reports []fleet.Report) string {
	counts := map[model.Status]int{}
	for _, rep := range reports {
		counts[rep.Status]++
	}
	noun := "builders"
	if len(reports) == 1 {
		noun = "builder"
	}
	var parts []string
	for _, raw := range model.Statuses() {
		s := model.Status(raw)
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", humanize.Comma(int64(n)), s))
		}
	}
	if n := counts[model.StatusUnknown]; n > 0 {
		parts = append(parts, fmt.Sprintf("%s unknown", humanize.Comma(int64(n))))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s %s", humanize.Comma(int64(len(reports))), noun)
	}
	return fmt.Sprintf("%s %s: %s", humanize.Comma(int64(len(reports))), noun, strings.Join(parts, ", "))
}
