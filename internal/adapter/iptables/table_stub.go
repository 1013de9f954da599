//go:build !linux

package iptables

import (
	"context"
	"errors"

	"berth/internal/provision"
)

var _ provision.RuleTable = (*Table)(nil)

var errUnsupported = errors.New("port forwarding requires iptables and is only available on linux")

// Table is a stub on platforms without iptables. Construction succeeds so
// verbs that never touch NAT still work; rule operations error.
type Table struct {
	ingress string
}

// New returns a stub Table.
func New(ingress string) (*Table, error) {
	return &Table{ingress: ingress}, nil
}

// Ingress returns the configured ingress interface name.
func (t *Table) Ingress() string { return t.ingress }

func (t *Table) Install(ctx context.Context, rule provision.ForwardRule) error {
	return errUnsupported
}

func (t *Table) Matching(ctx context.Context, hostPort int) ([]provision.RuleHandle, error) {
	return nil, errUnsupported
}

func (t *Table) Delete(ctx context.Context, handle provision.RuleHandle) error {
	return errUnsupported
}
