package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithInvocationID(ctx, "inv-1")
	ctx = WithCaseID(ctx, "case-1")
	ctx = WithAgentRole(ctx, "analyst")

	id, ok := InvocationID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "inv-1", id)

	caseID, ok := CaseID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "case-1", caseID)

	role, ok := AgentRole(ctx)
	assert.True(t, ok)
	assert.Equal(t, "analyst", role)
}

func TestMissingOrEmpty(t *testing.T) {
	_, ok := CaseID(context.Background())
	assert.False(t, ok)

	_, ok = AgentRole(WithAgentRole(context.Background(), ""))
	assert.False(t, ok, "空值视为未设置")
}
