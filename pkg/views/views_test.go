package views_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/aretw0/pipemirror/pkg/views"
	"github.com/stretchr/testify/assert"
)

func seed() *store.Store {
	s := store.New()
	s.Workflows.ReplaceAll(map[string]domain.Workflow{
		"w1": {UUID: "w1", Name: "Daily", State: domain.StateRunning},
	})
	s.Instances.ReplaceAll(map[string]domain.Instance{
		"i1": {UUID: "i1", WorkflowUUID: "w1"},
		"i2": {UUID: "i2", WorkflowUUID: "w9"},
	})
	return s
}

func sortedKeys(m map[string]domain.Instance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestOrphans_Scenario(t *testing.T) {
	s := seed()
	orphans := views.Orphans(s)
	defer orphans.Close()

	got := orphans.Get()
	assert.Equal(t, []string{"i2"}, sortedKeys(got))
	assert.Equal(t, "w9", got["i2"].WorkflowUUID)
}

func TestOrphans_WorkflowRemovalOrphansInstances(t *testing.T) {
	s := seed()
	orphans := views.Orphans(s)
	defer orphans.Close()

	s.Workflows.Remove("w1")

	assert.Equal(t, []string{"i1", "i2"}, sortedKeys(orphans.Get()))
}

func TestOrphans_WorkflowArrivalAdoptsInstances(t *testing.T) {
	s := seed()
	orphans := views.Orphans(s)
	defer orphans.Close()

	s.Workflows.Upsert("w9", domain.Workflow{UUID: "w9"})
	assert.Empty(t, orphans.Get())

	s.Workflows.ReplaceAll(map[string]domain.Workflow{})
	assert.Equal(t, 2, orphans.Len())
}

func TestOrphans_MatchesPureProjectionAfterEveryMutation(t *testing.T) {
	s := seed()
	orphans := views.Orphans(s)
	defer orphans.Close()

	mutations := []func(){
		func() { s.Instances.Upsert("i3", domain.Instance{UUID: "i3", WorkflowUUID: "w1"}) },
		func() { s.Workflows.Upsert("w9", domain.Workflow{UUID: "w9"}) },
		func() { s.Instances.Remove("i1") },
		func() { s.Workflows.Remove("w1") },
		func() { s.Instances.Upsert("i2", domain.Instance{UUID: "i2", WorkflowUUID: "w1"}) },
		func() { s.Workflows.ReplaceAll(nil) },
	}
	for _, m := range mutations {
		m()
		want := views.FindOrphans(s.Instances.Snapshot(), s.Workflows.Snapshot())
		assert.Equal(t, sortedKeys(want), sortedKeys(orphans.Get()))
	}
}

func TestOrphans_ConvergesUnderConcurrentWriters(t *testing.T) {
	s := seed()
	orphans := views.Orphans(s)
	defer orphans.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				s.Instances.Upsert(key, domain.Instance{UUID: key, WorkflowUUID: "w1"})
				if i%2 == 0 {
					s.Workflows.Remove("w1")
				} else {
					s.Workflows.Upsert("w1", domain.Workflow{UUID: "w1"})
				}
			}
		}(g)
	}
	wg.Wait()

	want := views.FindOrphans(s.Instances.Snapshot(), s.Workflows.Snapshot())
	assert.Equal(t, sortedKeys(want), sortedKeys(orphans.Get()))
}

func TestInstancesForWorkflow(t *testing.T) {
	s := seed()
	v := views.InstancesForWorkflow(s, "w1")
	defer v.Close()

	assert.Equal(t, []string{"i1"}, sortedKeys(v.Get()))

	var notified int
	v.Subscribe(func(map[string]domain.Instance) { notified++ })

	s.Instances.Upsert("i5", domain.Instance{UUID: "i5", WorkflowUUID: "w1"})
	assert.Equal(t, []string{"i1", "i5"}, sortedKeys(v.Get()))
	assert.Equal(t, 1, notified)

	v.Close()
	s.Instances.Upsert("i6", domain.Instance{UUID: "i6", WorkflowUUID: "w1"})
	assert.Equal(t, 2, v.Len())
}

func TestView_DoesNotMutateStore(t *testing.T) {
	s := seed()
	v := views.InstancesForWorkflow(s, "w1")
	defer v.Close()

	got := v.Get()
	inst := got["i1"]
	inst.WorkflowUUID = "other"
	got["i1"] = inst

	stored, _ := s.Instances.Get("i1")
	assert.Equal(t, "w1", stored.WorkflowUUID)
}

func TestFilterByWorkflow(t *testing.T) {
	in := map[string]domain.Instance{
		"a": {WorkflowUUID: "x"},
		"b": {WorkflowUUID: "y"},
	}
	assert.Equal(t, []string{"a"}, sortedKeys(views.FilterByWorkflow(in, "x")))
}
