package fake

import (
	"context"
	"fmt"
	"sync"

	"berth/internal/provision"
)

var _ provision.RuleTable = (*RuleTable)(nil)

// RuleTable is an in-memory implementation of provision.RuleTable. It
// behaves like a numbered chain: installed rules are appended, handles are
// 1-based positions, and deleting a rule renumbers everything below it.
type RuleTable struct {
	CallRecorder
	mu    sync.Mutex
	chain []provision.ForwardRule

	InstallErr  func(ctx context.Context, rule provision.ForwardRule) error
	MatchingErr func(ctx context.Context, hostPort int) error
	DeleteErr   func(ctx context.Context, handle provision.RuleHandle) error
}

// NewRuleTable creates an empty RuleTable.
func NewRuleTable() *RuleTable {
	return &RuleTable{}
}

// Rules returns the live rules in chain order.
func (t *RuleTable) Rules() []provision.ForwardRule {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]provision.ForwardRule, len(t.chain))
	copy(out, t.chain)
	return out
}

func (t *RuleTable) Install(ctx context.Context, rule provision.ForwardRule) error {
	t.record("Install", rule)
	if t.InstallErr != nil {
		if err := t.InstallErr(ctx, rule); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chain = append(t.chain, rule)
	return nil
}

func (t *RuleTable) Matching(ctx context.Context, hostPort int) ([]provision.RuleHandle, error) {
	t.record("Matching", hostPort)
	if t.MatchingErr != nil {
		if err := t.MatchingErr(ctx, hostPort); err != nil {
			return nil, err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var handles []provision.RuleHandle
	for i, rule := range t.chain {
		if rule.HostPort == hostPort {
			handles = append(handles, provision.RuleHandle{Chain: "PREROUTING", Line: i + 1})
		}
	}
	return handles, nil
}

func (t *RuleTable) Delete(ctx context.Context, handle provision.RuleHandle) error {
	t.record("Delete", handle)
	if t.DeleteErr != nil {
		if err := t.DeleteErr(ctx, handle); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := handle.Line - 1
	if idx < 0 || idx >= len(t.chain) {
		return fmt.Errorf("no rule at line %d", handle.Line)
	}
	t.chain = append(t.chain[:idx], t.chain[idx+1:]...)
	return nil
}
