package mermaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   DiagramType
	}{
		{"graph", "graph TD\nA-->B", Flowchart},
		{"flowchart", "flowchart LR\n  a --> b", Flowchart},
		{"sequence", "sequenceDiagram\nA->>B: hi", SequenceDiagram},
		{"class", "classDiagram\nAnimal <|-- Duck", ClassDiagram},
		{"state v2", "stateDiagram-v2\n[*] --> Still", StateDiagram},
		{"er", "erDiagram\nCUSTOMER ||--o{ ORDER : places", EntityRelationship},
		{"journey", "journey\ntitle My day", UserJourney},
		{"gantt", "gantt\ndateFormat YYYY-MM-DD", GanttChart},
		{"pie", "pie\ntitle Pets\n\"Dogs\":60\n\"Cats\":40", PieChart},
		{"gitgraph", "gitGraph\ncommit", Gitgraph},
		{"c4", "C4Context\ntitle System", C4Context},
		{"mindmap", "mindmap\n  root", Mindmap},
		{"timeline", "timeline\ntitle History", Timeline},
		{"zenuml", "zenuml\nA.method()", ZenUML},
		{"sankey", "sankey-beta\nA,B,10", Sankey},
		{"leading blank lines", "\n\n   \n  sequenceDiagram\nA->>B: hi", SequenceDiagram},
		{"empty", "", Flowchart},
		{"whitespace", "  \n\t\n", Flowchart},
		{"unrecognised", "hello world", Flowchart},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.source))
		})
	}
}

func TestHasKnownKeyword(t *testing.T) {
	assert.True(t, HasKnownKeyword("graph TD"))
	assert.True(t, HasKnownKeyword("\n  Gantt\n"))
	assert.False(t, HasKnownKeyword("A --> B"))
	assert.False(t, HasKnownKeyword(""))
}

func TestParseDiagramType(t *testing.T) {
	for _, typ := range Types {
		got, ok := ParseDiagramType(typ.String())
		assert.True(t, ok, typ)
		assert.Equal(t, typ, got)
	}

	_, ok := ParseDiagramType("pie chart")
	assert.False(t, ok)
}
