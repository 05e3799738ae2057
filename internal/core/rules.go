package core

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/roach88/qcore/internal/coreerr"
	"github.com/roach88/qcore/internal/graph"
	"github.com/roach88/qcore/internal/protocol"
)

// CreateRule registers a rule from two engine graphs.
func (c *Core) CreateRule(ctx context.Context, rule string, lhs, rhs *graph.Graph) (*graph.Rewrite, error) {
	if err := c.ruleCommand(ctx, "new_rule", rule, lhs, rhs); err != nil {
		return nil, err
	}
	return &graph.Rewrite{Name: rule, LHS: lhs, RHS: rhs}, nil
}

// OpenRule fetches both sides of a rule as new, synced engine graphs.
func (c *Core) OpenRule(ctx context.Context, rule string) (*graph.Rewrite, error) {
	lhsName, err := c.client.Name(ctx, "open_rule_lhs", protocol.Name(rule))
	if err != nil {
		return nil, err
	}
	lhs, err := c.adopt(ctx, lhsName, "")
	if err != nil {
		return nil, err
	}
	rhsName, err := c.client.Name(ctx, "open_rule_rhs", protocol.Name(rule))
	if err != nil {
		return nil, err
	}
	rhs, err := c.adopt(ctx, rhsName, "")
	if err != nil {
		return nil, err
	}
	return &graph.Rewrite{Name: rule, LHS: lhs, RHS: rhs}, nil
}

// SaveRule writes an opened rule's graphs back to the engine.
func (c *Core) SaveRule(ctx context.Context, rw *graph.Rewrite) error {
	if rw == nil || rw.Name == "" {
		return coreerr.New(coreerr.CodeInvalidArgument, "rewrite has no name")
	}
	return c.ruleCommand(ctx, "update_rule", rw.Name, rw.LHS, rw.RHS)
}

func (c *Core) ruleCommand(ctx context.Context, cmd, rule string, lhs, rhs *graph.Graph) error {
	if lhs == nil || rhs == nil {
		return coreerr.New(coreerr.CodeInvalidArgument, "rule needs both sides")
	}
	// Names are read under each side's lock; lhs and rhs may be the same graph.
	lhs.Lock()
	l := lhs.Name()
	lhs.Unlock()
	rhs.Lock()
	r := rhs.Name()
	rhs.Unlock()
	if l == "" || r == "" {
		return errNoName()
	}
	_, err := c.client.Command(ctx, cmd, protocol.Name(rule), protocol.Name(l), protocol.Name(r))
	return err
}

// ListRulesets returns the names of all loaded rulesets.
func (c *Core) ListRulesets(ctx context.Context) ([]string, error) {
	return c.client.List(ctx, "list_rulesets")
}

// ListRules returns the rules of a ruleset, or of every ruleset when
// ruleset is empty.
func (c *Core) ListRules(ctx context.Context, ruleset string) ([]string, error) {
	if ruleset == "" {
		return c.client.List(ctx, "list_rules")
	}
	return c.client.List(ctx, "list_rules", protocol.Name(ruleset))
}

// LoadRuleset has the engine load a ruleset file and returns its name. A
// newly loaded ruleset starts active.
func (c *Core) LoadRuleset(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	name, err := c.client.Name(ctx, "load_ruleset", protocol.Name(abs))
	if err != nil {
		return "", err
	}
	if c.theory != nil && name != "" {
		c.theory.SetActive(name, true)
	}
	c.logger.Info("ruleset.loaded", "ruleset", name, "file", abs)
	return name, nil
}

// SaveRuleset has the engine write its rulesets to path.
func (c *Core) SaveRuleset(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	_, err = c.client.Command(ctx, "save_ruleset", protocol.Name(abs))
	return err
}

// ActivateRuleset enables a ruleset for rewriting.
func (c *Core) ActivateRuleset(ctx context.Context, ruleset string) error {
	return c.setRulesetActive(ctx, ruleset, true)
}

// DeactivateRuleset disables a ruleset for rewriting.
func (c *Core) DeactivateRuleset(ctx context.Context, ruleset string) error {
	return c.setRulesetActive(ctx, ruleset, false)
}

func (c *Core) setRulesetActive(ctx context.Context, ruleset string, active bool) error {
	cmd := "deactivate_ruleset"
	if active {
		cmd = "activate_ruleset"
	}
	if _, err := c.client.Command(ctx, cmd, protocol.Name(ruleset)); err != nil {
		return err
	}
	if c.theory != nil {
		c.theory.SetActive(ruleset, active)
	}
	return nil
}
