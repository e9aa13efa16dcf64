// Package collab runs the multi-role generation loop: a collector,
// generator, reviewer, and optimizer sharing the registered LLM
// backends, each with its own sampling parameters.
package collab

import (
	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/llm"
)

// Role identifies one of the fixed collaboration roles.
type Role string

const (
	RoleCollector Role = "collector"
	RoleGenerator Role = "generator"
	RoleReviewer  Role = "reviewer"
	RoleOptimizer Role = "optimizer"
)

// Roles lists every role in assignment order.
var Roles = []Role{RoleCollector, RoleGenerator, RoleReviewer, RoleOptimizer}

// RoleParams carries the per-role sampling settings.
type RoleParams struct {
	Description string
	Temperature float64
	MaxTokens   int
}

// Assignments maps each role to a backend name. Backends are dealt out
// round-robin over the registry's registration order, so with one
// backend every role shares it and with several the load spreads.
type Assignments struct {
	byRole map[Role]string
	params map[Role]RoleParams
}

// Assign computes the role-to-backend mapping for the current registry
// contents. It is cheap and meant to be recomputed whenever the
// backend set changes.
func Assign(reg *llm.Registry, roles config.RolesConfig) *Assignments {
	names := reg.Names()
	a := &Assignments{
		byRole: make(map[Role]string, len(Roles)),
		params: map[Role]RoleParams{
			RoleCollector: fromConfig(roles.Collector),
			RoleGenerator: fromConfig(roles.Generator),
			RoleReviewer:  fromConfig(roles.Reviewer),
			RoleOptimizer: fromConfig(roles.Optimizer),
		},
	}
	for i, role := range Roles {
		if len(names) == 0 {
			a.byRole[role] = ""
			continue
		}
		a.byRole[role] = names[i%len(names)]
	}
	return a
}

func fromConfig(rc config.RoleConfig) RoleParams {
	return RoleParams{
		Description: rc.Description,
		Temperature: rc.Temperature,
		MaxTokens:   rc.MaxTokens,
	}
}

// Backend returns the backend name assigned to a role. Empty string
// means the registry's default backend.
func (a *Assignments) Backend(role Role) string {
	return a.byRole[role]
}

// Params returns the sampling settings for a role.
func (a *Assignments) Params(role Role) RoleParams {
	return a.params[role]
}
