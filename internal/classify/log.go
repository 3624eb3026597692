package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

// CrashedMessage is reported when no failure signature is found.
const CrashedMessage = "something crashed"

// Outcome is the classification of a single test-step log.
type Outcome struct {
	Status      model.Status
	Message     string
	FailedTests model.TestSet
}

var (
	bannerRe  = regexp.MustCompile(`^\s*(\d+) tests? failed:(.*)$`)
	killedRe  = regexp.MustCompile(`process killed by signal \d+`)
	makeRe    = regexp.MustCompile(`make: \*\*\* \[buildbottest\] Error \d+`)
	timeoutRe = regexp.MustCompile(`command timed out: (\d+) seconds`)
	testRe    = regexp.MustCompile(`\btest_\w+`)
)

var resourcePhrases = []string{
	"filesystem is full",
	"No space left on device",
	"Cannot allocate memory",
}

var folder = cases.Fold()

// Log classifies the text of a test step. prior is the build-level result
// already known from the summary page; it refines the banner and termination
// cases. An empty log means the step has not produced output yet.
func Log(text string, prior model.Status) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{Status: model.StatusBuilding}, nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	if out, ok, err := fromBanner(lines, prior); ok || err != nil {
		return out, err
	}
	if out, ok := fromResources(lines); ok {
		return out, nil
	}
	if out, ok := fromTermination(lines, prior); ok {
		return out, nil
	}
	return Outcome{Status: model.StatusException, Message: CrashedMessage}, nil
}

func fromBanner(lines []string, prior model.Status) (Outcome, bool, error) {
	for i, line := range lines {
		m := bannerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		want, _ := strconv.Atoi(m[1])
		tokens := strings.Fields(m[2])
		for _, next := range lines[i+1:] {
			if next == "" || (next[0] != ' ' && next[0] != '\t') {
				break
			}
			tokens = append(tokens, strings.Fields(next)...)
		}
		if len(tokens) != want {
			return Outcome{}, true, errors.LogFormatError(
				fmt.Sprintf("%d tests announced, %d listed", want, len(tokens))).
				WithContext("line", i+1).
				Build()
		}
		status := model.StatusFailure
		if prior == model.StatusException {
			status = model.StatusException
		}
		return Outcome{
			Status:      status,
			Message:     fmt.Sprintf("%d failed", want),
			FailedTests: model.TestSet(nil).Add(tokens...),
		}, true, nil
	}
	return Outcome{}, false, nil
}

func fromResources(lines []string) (Outcome, bool) {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, phrase := range resourcePhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				return Outcome{Status: model.StatusException, Message: folder.String(phrase)}, true
			}
		}
	}
	return Outcome{}, false
}

// fromTermination walks the log backwards. i is decremented inside the body
// whenever a preceding line is consumed as context for the marker.
func fromTermination(lines []string, prior model.Status) (Outcome, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		marker := killedRe.FindString(lines[i])
		if marker == "" {
			marker = makeRe.FindString(lines[i])
		}
		if marker == "" {
			continue
		}

		out := Outcome{Status: model.StatusFailure, Message: marker}
		if prior.IsFailure() {
			out.Status = prior
		}

		i = previousNonBlank(lines, i-1)
		if i >= 0 {
			if m := timeoutRe.FindStringSubmatch(lines[i]); m != nil {
				secs, _ := strconv.Atoi(m[1])
				out.Status = model.StatusFailure
				out.Message = fmt.Sprintf("hung for %d min", secs/60)
				i = previousNonBlank(lines, i-1)
			}
		}
		if i >= 0 {
			if test := testRe.FindString(lines[i]); test != "" {
				out.FailedTests = model.TestSet{test}
			}
		}
		return out, true
	}
	return Outcome{}, false
}

func previousNonBlank(lines []string, i int) int {
	for ; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}
