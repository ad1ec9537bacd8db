package ports_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/ports"
)

// MockStore keeps the snapshot as JSON to simulate serialization.
type MockStore struct {
	data []byte
}

func (m *MockStore) Save(ctx context.Context, snap domain.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.data = b
	return nil
}

func (m *MockStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	if m.data == nil {
		return nil, ports.ErrSnapshotNotFound
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(m.data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (m *MockStore) Delete(ctx context.Context) error {
	m.data = nil
	return nil
}

func TestSnapshotStoreContract_Mock(t *testing.T) {
	ports.RunSnapshotStoreContract(t, &MockStore{})
}
