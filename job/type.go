package job

import "fmt"

// Type identifies which class of worker may claim a job. It is a closed
// enumeration: the planner and worker runtime never invent new job
// types at runtime.
type Type string

const (
	// Notebook jobs execute an executable notebook and capture its
	// rendered output.
	Notebook Type = "notebook"

	// PlantUML jobs render a PlantUML diagram source file.
	PlantUML Type = "plantuml"

	// Drawio jobs render a Draw.io diagram source file.
	Drawio Type = "drawio"
)

// Valid reports whether t is one of the closed set of known job types.
func (t Type) Valid() bool {
	switch t {
	case Notebook, PlantUML, Drawio:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// ParseType validates s against the closed set of job types.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("job: unknown job type %q", s)
	}
	return t, nil
}
