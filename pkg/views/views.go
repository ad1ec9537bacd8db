// Package views provides projections over the store that recompute
// whenever one of their input collections changes.
package views

import (
	"sync"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/store"
)

// FilterByWorkflow returns the instances that reference workflowUUID.
func FilterByWorkflow(instances map[string]domain.Instance, workflowUUID string) map[string]domain.Instance {
	out := make(map[string]domain.Instance)
	for k, inst := range instances {
		if inst.WorkflowUUID == workflowUUID {
			out[k] = inst
		}
	}
	return out
}

// FindOrphans returns the instances whose workflow is not a key of workflows.
func FindOrphans(instances map[string]domain.Instance, workflows map[string]domain.Workflow) map[string]domain.Instance {
	out := make(map[string]domain.Instance)
	for k, inst := range instances {
		if _, ok := workflows[inst.WorkflowUUID]; !ok {
			out[k] = inst
		}
	}
	return out
}

// View is a cached instance projection kept current by store subscriptions.
type View struct {
	compute func() map[string]domain.Instance

	// recomputeMu orders compute with the store of its result, so an
	// older snapshot never overwrites a newer one.
	recomputeMu sync.Mutex

	mu     sync.RWMutex
	result map[string]domain.Instance

	obsMu     sync.Mutex
	observers []func(map[string]domain.Instance)

	unsubscribe []func()
}

func newView(compute func() map[string]domain.Instance, inputs ...func(store.Observer) func()) *View {
	v := &View{compute: compute}
	for _, subscribe := range inputs {
		v.unsubscribe = append(v.unsubscribe, subscribe(func(store.Change) { v.recompute() }))
	}
	v.recompute()
	return v
}

// InstancesForWorkflow tracks the instances belonging to workflowUUID.
func InstancesForWorkflow(s *store.Store, workflowUUID string) *View {
	return newView(func() map[string]domain.Instance {
		return s.Instances.Filter(func(_ string, inst domain.Instance) bool {
			return inst.WorkflowUUID == workflowUUID
		})
	}, s.Instances.Subscribe)
}

// Orphans tracks instances whose workflow is absent from the store.
// It depends on both collections: deleting a workflow orphans its
// instances without any instance-side change.
func Orphans(s *store.Store) *View {
	return newView(func() map[string]domain.Instance {
		return FindOrphans(s.Instances.Snapshot(), s.Workflows.Snapshot())
	}, s.Instances.Subscribe, s.Workflows.Subscribe)
}

func (v *View) recompute() {
	v.recomputeMu.Lock()
	next := v.compute()
	v.mu.Lock()
	v.result = next
	v.mu.Unlock()
	v.recomputeMu.Unlock()

	v.obsMu.Lock()
	fns := append([]func(map[string]domain.Instance){}, v.observers...)
	v.obsMu.Unlock()
	for _, fn := range fns {
		fn(v.Get())
	}
}

// Get returns a copy of the current projection.
func (v *View) Get() map[string]domain.Instance {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]domain.Instance, len(v.result))
	for k, inst := range v.result {
		out[k] = inst.Clone()
	}
	return out
}

// Keys returns the keys of the current projection.
func (v *View) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.result))
	for k := range v.result {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the size of the current projection.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.result)
}

// Subscribe registers fn to receive every recomputed projection.
func (v *View) Subscribe(fn func(map[string]domain.Instance)) {
	v.obsMu.Lock()
	v.observers = append(v.observers, fn)
	v.obsMu.Unlock()
}

// Close detaches the view from the store. The last projection stays readable.
func (v *View) Close() {
	for _, u := range v.unsubscribe {
		u()
	}
	v.unsubscribe = nil
}
