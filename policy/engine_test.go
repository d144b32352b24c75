package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karhu-io/aclscan/types"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	engine := NewEngine()
	require.NoError(t, engine.LoadDefault(context.Background()))
	return engine
}

func TestEngine_FlagsBroadFullControl(t *testing.T) {
	engine := newDefaultEngine(t)

	records := []types.Record{
		{FolderPath: "/srv/share", Principal: "Everyone", EntryType: types.EntryAllow, Permissions: "Full Control"},
	}

	findings, err := engine.Evaluate(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	assert.Equal(t, "high", findings[0].Risk)
	assert.Equal(t, "/srv/share", findings[0].FolderPath)
	assert.Equal(t, "Everyone", findings[0].Principal)
	assert.Equal(t, DefaultPolicyName, findings[0].Policy)
}

func TestEngine_PlainReadIsClean(t *testing.T) {
	engine := newDefaultEngine(t)

	records := []types.Record{
		{FolderPath: "/srv/share", Principal: "CORP\\alice", EntryType: types.EntryAllow, Permissions: "Read"},
		{FolderPath: "/srv/share", Principal: "CORP\\alice", EntryType: types.EntryAllow, Permissions: "Full Control"},
	}

	findings, err := engine.Evaluate(context.Background(), records)
	require.NoError(t, err)
	assert.Empty(t, findings, "named-user grants should not be flagged")
}

func TestEngine_FlagsDenyAndError(t *testing.T) {
	engine := newDefaultEngine(t)

	records := []types.Record{
		{FolderPath: "/srv/share", Principal: "CORP\\interns", EntryType: types.EntryDeny, Permissions: "Write"},
		{FolderPath: "/srv/locked", Principal: "N/A", EntryType: types.EntryError, Permissions: "Could not access permissions: access denied"},
	}

	findings, err := engine.Evaluate(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, "medium", f.Risk)
	}
}

func TestEngine_NoPoliciesLoaded(t *testing.T) {
	engine := NewEngine()

	findings, err := engine.Evaluate(context.Background(), []types.Record{
		{FolderPath: "/a", Principal: "Everyone", EntryType: types.EntryAllow, Permissions: "Full Control"},
	})
	require.NoError(t, err)
	assert.Nil(t, findings)
}

func TestEngine_RejectsBrokenPolicy(t *testing.T) {
	engine := NewEngine()
	err := engine.LoadPolicy(context.Background(), "broken.rego", "package aclscan\n\nfindings contains f if {")
	assert.Error(t, err)
}
