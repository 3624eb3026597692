package classify

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/bbreport/internal/model"
)

// SummaryOutcome is what a build summary page reveals about a build.
type SummaryOutcome struct {
	Status   model.Status
	Number   int // -1 when the page has no "Build #N" header
	Revision int
	Message  string
}

var buildNumberRe = regexp.MustCompile(`Build #(\d+)`)

// resultClasses maps the CSS class buildbot attaches to the results block.
var resultClasses = map[string]model.Status{
	"success":   model.StatusSuccess,
	"warnings":  model.StatusUnstable,
	"failure":   model.StatusFailure,
	"skipped":   model.StatusSuccess,
	"exception": model.StatusException,
	"retry":     model.StatusException,
}

// ResultStatus maps a buildbot result name (as used in CSS classes and the
// XML-RPC interface) onto a build status.
func ResultStatus(name string) (model.Status, bool) {
	s, ok := resultClasses[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

var sourceFailureMarkers = []string{"failed svn", "failed git", "failed hg", "failed update"}

// SourceFetchFailed reports whether a build message describes a failed
// source checkout, which makes the build an infrastructure exception.
func SourceFetchFailed(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range sourceFailureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Summary parses a build summary page. Only the block under the "Results:"
// heading gives the build result; step entries carry the same result classes
// and are ignored. A page without a results block, or one announcing
// "Build In Progress", belongs to a build that is still running.
func Summary(page string) SummaryOutcome {
	out := SummaryOutcome{Status: model.StatusBuilding, Number: -1}
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return out
	}

	var (
		found       bool
		inProgress  bool
		gotRevision bool
		section     string
	)
	var walk func(n *html.Node, inStep bool)
	walk = func(n *html.Node, inStep bool) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "h1" && out.Number < 0:
				if m := buildNumberRe.FindStringSubmatch(textOf(n)); m != nil {
					out.Number, _ = strconv.Atoi(m[1])
				}
			case n.Data == "h2":
				section = strings.ToLower(textOf(n))
				if strings.Contains(section, "in progress") {
					inProgress = true
				}
				return
			case n.Data == "li" || n.Data == "ol":
				inStep = true
			case n.Data == "tr":
				key, value := rowPair(n)
				switch key {
				case "got revision":
					if rev, err := strconv.Atoi(value); err == nil {
						out.Revision = rev
						gotRevision = true
					}
				case "revision":
					if rev, err := strconv.Atoi(value); err == nil && !gotRevision {
						out.Revision = rev
					}
				}
			default:
				if found || inStep || !strings.HasPrefix(section, "results") {
					break
				}
				if status, ok := resultClass(n); ok {
					found = true
					out.Status = status
					out.Message = textOf(n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inStep)
		}
	}
	walk(doc, false)

	if inProgress || !found {
		out.Status = model.StatusBuilding
		out.Message = ""
		return out
	}
	if out.Status.IsTerminal() && SourceFetchFailed(out.Message) {
		out.Status = model.StatusException
	}
	return out
}

func resultClass(n *html.Node) (model.Status, bool) {
	var classes []string
	for _, a := range n.Attr {
		if a.Key == "class" {
			classes = strings.Fields(a.Val)
		}
	}
	hasResult := false
	status := model.StatusUnknown
	for _, c := range classes {
		if c == "result" {
			hasResult = true
		} else if s, ok := ResultStatus(c); ok {
			status = s
		}
	}
	return status, hasResult && status != model.StatusUnknown
}

// rowPair returns the normalized label and the value of a two-column table row.
func rowPair(tr *html.Node) (string, string) {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, textOf(c))
		}
	}
	if len(cells) < 2 {
		return "", ""
	}
	key := strings.ToLower(strings.TrimSuffix(cells[0], ":"))
	key = strings.ReplaceAll(key, "_", " ")
	return key, cells[1]
}

// textOf returns the whitespace-collapsed text content of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
