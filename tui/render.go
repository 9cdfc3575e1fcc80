package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/xiaokk2024/mymanus1/tui/styles"
)

const defaultWrapWidth = 100

// Renderer turns assistant markdown into terminal output.
type Renderer struct {
	md     *glamour.TermRenderer
	styles *styles.Styles
}

// NewRenderer builds a renderer for the theme. A zero width uses the default.
func NewRenderer(s *styles.Styles, width int) *Renderer {
	if s == nil {
		s = styles.NewStyles(styles.DefaultTheme)
	}
	if width <= 0 {
		width = defaultWrapWidth
	}

	styleOpt := glamour.WithAutoStyle()
	if s.Theme.Glamour != "" {
		styleOpt = glamour.WithStandardStyle(s.Theme.Glamour)
	}
	md, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		md = nil
	}
	return &Renderer{md: md, styles: s}
}

// Markdown renders content, falling back to the raw text.
func (r *Renderer) Markdown(content string) string {
	if r.md == nil || strings.TrimSpace(content) == "" {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// Code renders a fenced code block.
func (r *Renderer) Code(lang, code string) string {
	return r.Markdown(fmt.Sprintf("```%s\n%s\n```", lang, strings.TrimRight(code, "\n")))
}

// Assistant renders a reply under the given role label. Reasoning models
// wrap their trace in <think> tags; it is shown dimmed above the answer.
func (r *Renderer) Assistant(role, content string) string {
	trace, answer := splitThinkingTrace(content)

	sections := make([]string, 0, 2)
	if trace != "" {
		sections = append(sections, r.styles.SystemMessage.Render(trace))
	}
	if strings.TrimSpace(answer) != "" {
		sections = append(sections, r.Markdown(answer))
	}
	return fmt.Sprintf("%s\n%s", r.styles.RenderRole(role), strings.Join(sections, "\n\n"))
}

var thinkTraceRe = regexp.MustCompile(`(?is)<think>\s*(.*?)\s*</think>`)

func splitThinkingTrace(content string) (trace string, answer string) {
	matches := thinkTraceRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return "", content
	}

	traces := make([]string, 0, len(matches))
	for _, m := range matches {
		if t := strings.TrimSpace(m[1]); t != "" {
			traces = append(traces, t)
		}
	}
	answer = strings.TrimSpace(thinkTraceRe.ReplaceAllString(content, ""))
	return strings.Join(traces, "\n\n"), answer
}
