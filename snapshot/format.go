package snapshot

import (
	"fmt"
	"strings"
)

// Format renders a PageSnapshot into the section layout the prompt builder
// embeds in the user message: `## Current Page`, `### Page Text`,
// `### Links (n)`, `### Forms (n)`, and an optional `### Accessibility Tree`.
func Format(s PageSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Current Page\n")
	fmt.Fprintf(&b, "URL: %s\n", DisplayURL(s.URL))
	fmt.Fprintf(&b, "Title: %s\n\n", s.Title)

	b.WriteString("### Page Text\n")
	if s.Text == "" {
		b.WriteString("(empty)\n\n")
	} else {
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "### Links (%d)\n", len(s.Links))
	if len(s.Links) == 0 {
		b.WriteString("(none)\n\n")
	} else {
		for _, l := range s.Links {
			fmt.Fprintf(&b, "[%d] %s -> %s\n", l.Index, l.Text, DisplayURL(l.Href))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "### Forms (%d)\n", len(s.Forms))
	if len(s.Forms) == 0 {
		b.WriteString("(none)\n")
	} else {
		for i, f := range s.Forms {
			fmt.Fprintf(&b, "Form %d:\n", i)
			for _, in := range f.Inputs {
				fmt.Fprintf(&b, "  - %s selector=%s placeholder=%q\n", in.Type, in.Selector, in.Placeholder)
			}
		}
	}

	if s.AccessibilityYAML != "" {
		b.WriteString("\n### Accessibility Tree\n")
		b.WriteString(s.AccessibilityYAML)
		b.WriteString("\n")
	}

	return b.String()
}
