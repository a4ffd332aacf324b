package target

// Registry collects the targets produced by a scan. Drivers register each
// attached core here during discovery; the command layer iterates the list.
type Registry struct {
	targets []Target
}

// Add appends a discovered target.
func (r *Registry) Add(t Target) {
	r.targets = append(r.targets, t)
}

// All returns the registered targets in discovery order.
func (r *Registry) All() []Target {
	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}

// Len reports the number of registered targets.
func (r *Registry) Len() int { return len(r.targets) }
