package ports

import (
	"context"
	"testing"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()

	t.Run("Load Empty", func(t *testing.T) {
		_ = store.Delete(ctx)
		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("Save and Load", func(t *testing.T) {
		snap := domain.Snapshot{
			Workflows: map[string]domain.Workflow{
				"w1": domain.NewWorkflow("w1"),
			},
			Instances: map[string]domain.Instance{
				"i1": {
					UUID:           "i1",
					WorkflowUUID:   "w1",
					State:          domain.StatePaused,
					ProcessingStep: domain.ProcessingStep{Procedure: "start", Index: 2},
					Variables:      domain.Variables{"x": {Typename: "String", Value: "y"}},
				},
			},
			Globals: map[string]domain.GlobalVariable{
				"g": {Typename: "Integer", Value: "7"},
			},
		}

		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "w1", loaded.Workflows["w1"].UUID)
		assert.Equal(t, domain.StatePaused, loaded.Instances["i1"].State)
		assert.Equal(t, 2, loaded.Instances["i1"].ProcessingStep.Index)
		assert.Equal(t, "7", loaded.Globals["g"].Value)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.Snapshot{
			Globals: map[string]domain.GlobalVariable{"only": {Value: "1"}},
		}))

		loaded, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, loaded.Globals, 1)
		assert.Empty(t, loaded.Workflows)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.Snapshot{}))
		require.NoError(t, store.Delete(ctx), "Delete should not return error")

		_, err := store.Load(ctx)
		assert.ErrorIs(t, err, ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})
}
