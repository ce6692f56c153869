// Package mermaid knows the Mermaid diagram notations the service accepts and
// how to recognise them from source text.
package mermaid

import "strings"

// DiagramType is the display label of a Mermaid notation.
type DiagramType string

const (
	Flowchart          DiagramType = "Flowchart"
	SequenceDiagram    DiagramType = "Sequence Diagram"
	ClassDiagram       DiagramType = "Class Diagram"
	StateDiagram       DiagramType = "State Diagram"
	EntityRelationship DiagramType = "Entity Relationship Diagram"
	UserJourney        DiagramType = "User Journey"
	GanttChart         DiagramType = "Gantt Chart"
	PieChart           DiagramType = "Pie Chart"
	Gitgraph           DiagramType = "Gitgraph"
	C4Context          DiagramType = "C4 Context"
	Mindmap            DiagramType = "Mindmap"
	Timeline           DiagramType = "Timeline"
	ZenUML             DiagramType = "ZenUML"
	Sankey             DiagramType = "Sankey"
)

// DefaultType is used when the source text names no known notation.
const DefaultType = Flowchart

// Types lists every accepted label in declaration order.
var Types = []DiagramType{
	Flowchart, SequenceDiagram, ClassDiagram, StateDiagram, EntityRelationship,
	UserJourney, GanttChart, PieChart, Gitgraph, C4Context, Mindmap, Timeline,
	ZenUML, Sankey,
}

type keyword struct {
	prefix string
	label  DiagramType
}

// keywords is checked in order and the first matching prefix wins.
var keywords = []keyword{
	{"graph", Flowchart},
	{"flowchart", Flowchart},
	{"sequencediagram", SequenceDiagram},
	{"classdiagram", ClassDiagram},
	{"statediagram", StateDiagram},
	{"erdiagram", EntityRelationship},
	{"journey", UserJourney},
	{"gantt", GanttChart},
	{"pie", PieChart},
	{"gitgraph", Gitgraph},
	{"c4context", C4Context},
	{"mindmap", Mindmap},
	{"timeline", Timeline},
	{"zenuml", ZenUML},
	{"sankey", Sankey},
}

// Classify maps diagram source text to its notation. Unrecognised or empty
// input is a Flowchart.
func Classify(source string) DiagramType {
	if kw, ok := match(source); ok {
		return kw.label
	}
	return DefaultType
}

// HasKnownKeyword reports whether the first non-blank line starts with a
// recognised diagram keyword.
func HasKnownKeyword(source string) bool {
	_, ok := match(source)
	return ok
}

// ParseDiagramType validates an explicitly supplied label.
func ParseDiagramType(label string) (DiagramType, bool) {
	for _, t := range Types {
		if string(t) == label {
			return t, true
		}
	}
	return "", false
}

func (t DiagramType) String() string { return string(t) }

func match(source string) (keyword, bool) {
	line := strings.ToLower(FirstLine(source))
	if line == "" {
		return keyword{}, false
	}
	for _, kw := range keywords {
		if strings.HasPrefix(line, kw.prefix) {
			return kw, true
		}
	}
	return keyword{}, false
}

// FirstLine returns the first non-blank line of source, trimmed.
func FirstLine(source string) string {
	for _, line := range strings.Split(source, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}
