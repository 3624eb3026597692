package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

// NoBuild is printed for slots whose build could not be resolved.
const NoBuild = "-"

type glyph struct {
	symbol string
	color  lipgloss.Color
}

var glyphs = map[model.Status]glyph{
	model.StatusUnknown:   {" ", lipgloss.Color("8")},
	model.StatusBuilding:  {"*", lipgloss.Color("6")},
	model.StatusSuccess:   {".", lipgloss.Color("2")},
	model.StatusFailure:   {"F", lipgloss.Color("1")},
	model.StatusException: {"X", lipgloss.Color("5")},
	model.StatusUnstable:  {"U", lipgloss.Color("3")},
	model.StatusOffline:   {"O", lipgloss.Color("8")},
	model.StatusMissing:   {"?", lipgloss.Color("4")},
}

// Symbol returns the one-character symbol of a status.
func Symbol(s model.Status) string {
	if g, ok := glyphs[s]; ok {
		return g.symbol
	}
	return NoBuild
}

type palette struct {
	styles map[model.Status]lipgloss.Style
	muted  lipgloss.Style
	on     bool
}

func newPalette(r *lipgloss.Renderer, on bool) palette {
	p := palette{styles: make(map[model.Status]lipgloss.Style, len(glyphs)), on: on}
	for s, g := range glyphs {
		p.styles[s] = r.NewStyle().Foreground(g.color)
	}
	p.muted = r.NewStyle().Foreground(lipgloss.Color("8"))
	return p
}

func (p palette) symbol(s model.Status) string {
	if !p.on {
		return Symbol(s)
	}
	style, ok := p.styles[s]
	if !ok {
		return p.muted.Render(NoBuild)
	}
	return style.Render(Symbol(s))
}

func (p palette) none() string {
	if !p.on {
		return NoBuild
	}
	return p.muted.Render(NoBuild)
}

// strip renders the build slots newest first, one symbol per slot.
func (p palette) strip(builds []*fleet.Build) string {
	var sb strings.Builder
	for _, b := range builds {
		if b == nil {
			sb.WriteString(p.none())
			continue
		}
		sb.WriteString(p.symbol(b.Result))
	}
	return sb.String()
}
