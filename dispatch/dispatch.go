// Package dispatch runs the ordered verification rules registered for the
// action a transaction declares.
package dispatch

import (
	"sort"

	"go.uber.org/zap"

	"das.dev/verifier/core"
)

// Rule is one self-contained predicate. Verify must not retain ctx.
type Rule struct {
	Name   string
	Verify func(ctx *Context) error
}

// Action is the ordered bundle of rules run for one action name.
type Action struct {
	Name  string
	Rules []Rule
}

func NewAction(name string) *Action {
	return &Action{Name: name}
}

// Add appends a rule and returns a for chaining.
func (a *Action) Add(name string, verify func(ctx *Context) error) *Action {
	a.Rules = append(a.Rules, Rule{Name: name, Verify: verify})
	return a
}

// Builder returns a fresh Action for one invocation, so rules can share
// per-invocation state through their closures.
type Builder func() *Action

// Registry maps action names to their builders.
type Registry struct {
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register binds name to b. A second registration of the same name replaces
// the first.
func (r *Registry) Register(name string, b Builder) *Registry {
	r.builders[name] = b
	return r
}

// Lookup builds the action registered under name.
func (r *Registry) Lookup(name string) (*Action, error) {
	b, ok := r.builders[name]
	if !ok {
		return nil, core.Errorf(core.ActionNotSupported, "action %q is not supported", name)
	}
	a := b()
	if a.Name == "" {
		a.Name = name
	}
	return a, nil
}

// Names lists the registered actions in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.builders))
	for n := range r.builders {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Run executes the rules of the action declared by ctx in registration order
// and returns the first failure unchanged.
func (r *Registry) Run(ctx *Context) error {
	a, err := r.Lookup(ctx.Action.Action)
	if err != nil {
		ctx.Log.Warn("action rejected", zap.String("action", ctx.Action.Action), zap.String("code", string(core.CodeOf(err))))
		return err
	}
	return a.Run(ctx)
}

func (a *Action) Run(ctx *Context) error {
	log := ctx.Log.With(zap.String("action", a.Name))
	for _, rule := range a.Rules {
		log.Debug("verify", zap.String("rule", rule.Name))
		if err := rule.Verify(ctx); err != nil {
			log.Warn("rule rejected",
				zap.String("rule", rule.Name),
				zap.String("code", string(core.CodeOf(err))),
				zap.Int8("exit", core.CodeOf(err).Exit()),
				zap.Error(err),
			)
			return err
		}
	}
	log.Debug("accepted", zap.Int("rules", len(a.Rules)))
	return nil
}
