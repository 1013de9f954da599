package provision

import (
	"context"
	"slices"
)

// LaunchOrder computes the order in which this container's transitive
// requirements must be started so that every requirement precedes its
// dependents. The container itself is not part of the order.
//
// Every entry is verified to have an instance in the runtime; an entry
// without one fails the whole computation with MissingDependencyError.
func (c *Container) LaunchOrder(ctx context.Context) ([]string, error) {
	// remaining maps each discovered id to its unsatisfied requirements;
	// seen keeps discovery order, the deterministic tie-break.
	remaining := make(map[string][]string)
	var seen []string

	discover := func(id string) error {
		req, err := c.reg.Get(id)
		if err != nil {
			return err
		}
		remaining[id] = slices.Clone(req.def.Requires)
		seen = append(seen, id)
		return nil
	}

	for _, id := range c.def.Requires {
		if _, ok := remaining[id]; ok {
			continue
		}
		if err := discover(id); err != nil {
			return nil, err
		}
	}

	// A requirement's own requirements may name ids not seen yet; keep
	// expanding until a pass adds nothing.
	for changed := true; changed; {
		changed = false
		for _, id := range seen {
			for _, reqID := range remaining[id] {
				if _, ok := remaining[reqID]; ok {
					continue
				}
				if err := discover(reqID); err != nil {
					return nil, err
				}
				changed = true
			}
		}
	}

	order := make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		launchable := ""
		for _, id := range seen {
			if reqs, ok := remaining[id]; ok && len(reqs) == 0 {
				launchable = id
				break
			}
		}
		if launchable == "" {
			stuck := make([]string, 0, len(remaining))
			for _, id := range seen {
				if _, ok := remaining[id]; ok {
					stuck = append(stuck, id)
				}
			}
			return nil, &CycleError{Remaining: stuck}
		}
		order = append(order, launchable)
		delete(remaining, launchable)
		for id, reqs := range remaining {
			remaining[id] = slices.DeleteFunc(reqs, func(r string) bool { return r == launchable })
		}
	}

	for _, id := range order {
		req, err := c.reg.Get(id)
		if err != nil {
			return nil, err
		}
		exists, err := req.exists(ctx)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &MissingDependencyError{ID: id, Name: req.Name()}
		}
	}
	return order, nil
}
