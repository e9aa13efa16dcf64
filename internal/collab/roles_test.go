package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/llm"
)

type staticBackend struct {
	name  string
	reply string
}

func (s *staticBackend) Name() string                     { return s.name }
func (s *staticBackend) IsAvailable(context.Context) bool { return true }
func (s *staticBackend) Chat(_ context.Context, _ []llm.Message, _ float64, _ int) (string, error) {
	return s.reply, nil
}

func registryWith(names ...string) *llm.Registry {
	reg := llm.NewRegistry(nil)
	for _, n := range names {
		reg.Register(n, &staticBackend{name: n})
	}
	return reg
}

func TestAssignSingleBackend(t *testing.T) {
	a := Assign(registryWith("ollama"), config.DefaultConfig().Roles)
	for _, role := range Roles {
		assert.Equal(t, "ollama", a.Backend(role), "role %s", role)
	}
}

func TestAssignRoundRobin(t *testing.T) {
	a := Assign(registryWith("b0", "b1", "b2"), config.DefaultConfig().Roles)

	assert.Equal(t, "b0", a.Backend(RoleCollector))
	assert.Equal(t, "b1", a.Backend(RoleGenerator))
	assert.Equal(t, "b2", a.Backend(RoleReviewer))
	assert.Equal(t, "b0", a.Backend(RoleOptimizer))
}

func TestAssignTwoBackends(t *testing.T) {
	a := Assign(registryWith("b0", "b1"), config.DefaultConfig().Roles)

	assert.Equal(t, "b0", a.Backend(RoleCollector))
	assert.Equal(t, "b1", a.Backend(RoleGenerator))
	assert.Equal(t, "b0", a.Backend(RoleReviewer))
	assert.Equal(t, "b1", a.Backend(RoleOptimizer))
}

func TestAssignNoBackends(t *testing.T) {
	a := Assign(registryWith(), config.DefaultConfig().Roles)
	for _, role := range Roles {
		assert.Empty(t, a.Backend(role))
	}
}

func TestAssignParams(t *testing.T) {
	roles := config.DefaultConfig().Roles
	a := Assign(registryWith("ollama"), roles)

	assert.InDelta(t, 0.7, a.Params(RoleCollector).Temperature, 1e-9)
	assert.Equal(t, 2000, a.Params(RoleCollector).MaxTokens)
	assert.InDelta(t, 0.8, a.Params(RoleGenerator).Temperature, 1e-9)
	assert.Equal(t, 4000, a.Params(RoleGenerator).MaxTokens)
	assert.InDelta(t, 0.3, a.Params(RoleReviewer).Temperature, 1e-9)
	assert.Equal(t, 3000, a.Params(RoleReviewer).MaxTokens)
	assert.InDelta(t, 0.5, a.Params(RoleOptimizer).Temperature, 1e-9)
	assert.Equal(t, 4000, a.Params(RoleOptimizer).MaxTokens)
}
