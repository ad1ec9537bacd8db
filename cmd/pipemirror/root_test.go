package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/testutils"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pipemirror version "+strings.TrimSpace(pipemirror.Version)+"\n", out)
}

func TestListCommand(t *testing.T) {
	fs := testutils.NewFakeServer(t)
	fs.Workflows["w1"] = domain.Workflow{UUID: "w1", Name: "Daily", State: domain.StateRunning}

	missing := filepath.Join(t.TempDir(), "none.yaml")
	out, err := run(t, "list", "workflows", "--json", "-c", missing, "--server", fs.URL(), "--log-level", "off")
	require.NoError(t, err)

	var got map[string]domain.Workflow
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Daily", got["w1"].Name)
}

func TestToggleCommand_RejectsUnknownKind(t *testing.T) {
	_, err := run(t, "toggle", "pipeline", "x")
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestMCPCommand_RejectsUnknownTransport(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	_, err := run(t, "mcp", "--transport", "tcp", "-c", missing, "--log-level", "off")
	assert.ErrorContains(t, err, "unknown transport")
}
