package tagship

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bft-labs/tagship/internal/pipeline"
)

// Plan is the job graph of a definition in execution order.
type Plan struct {
	Trigger []string
	Jobs    []PlannedJob
}

// PlannedJob is one node of a Plan.
type PlannedJob struct {
	Name            string
	Needs           []string
	Dependents      []string
	Depth           int
	ContinueOnError bool
}

// NewPlan validates def and lists its jobs in topological order.
func NewPlan(def pipeline.Definition) (Plan, error) {
	g, err := def.Graph()
	if err != nil {
		return Plan{}, err
	}
	p := Plan{Trigger: append([]string(nil), def.Trigger.Tags...)}
	for _, name := range g.TopologicalOrder() {
		spec, _ := g.Spec(name)
		depth, _ := g.Depth(name)
		p.Jobs = append(p.Jobs, PlannedJob{
			Name:            name,
			Needs:           spec.Needs,
			Dependents:      g.Dependents(name),
			Depth:           depth,
			ContinueOnError: spec.ContinueOnError,
		})
	}
	return p, nil
}

// Write renders the plan as a table.
func (p Plan) Write(w io.Writer) error {
	if len(p.Trigger) > 0 {
		if _, err := fmt.Fprintf(w, "trigger: tags %s\n\n", strings.Join(p.Trigger, ", ")); err != nil {
			return err
		}
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tJOB\tNEEDS\tNOTES")
	for _, j := range p.Jobs {
		needs := "-"
		if len(j.Needs) > 0 {
			needs = strings.Join(j.Needs, ", ")
		}
		notes := ""
		if j.ContinueOnError {
			notes = "continue-on-error"
		}
		fmt.Fprintf(tw, "%d\t%s%s\t%s\t%s\n", j.Depth, strings.Repeat("  ", j.Depth), j.Name, needs, notes)
	}
	return tw.Flush()
}
