package planwatcher

import "github.com/bft-labs/tagship/pkg/tagship"

// WithPlanWatcher returns a tagship Option that reloads the pipeline
// definition on every change while Watch runs.
//
// Usage:
//
//	t, err := tagship.New(cfg,
//	    planwatcher.WithPlanWatcher(planwatcher.DefaultConfig(), func(p tagship.Plan, err error) {
//	        if err != nil {
//	            fmt.Fprintln(os.Stderr, err)
//	        }
//	    }),
//	)
func WithPlanWatcher(cfg Config, onChange ChangeFunc) tagship.Option {
	return tagship.WithPlugin(New(cfg, onChange))
}
