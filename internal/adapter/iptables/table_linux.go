//go:build linux

package iptables

import (
	"context"
	"fmt"
	"strconv"

	"berth/internal/provision"

	ipt "github.com/docker/docker/libnetwork/iptables"
	"github.com/vishvananda/netlink"
)

var _ provision.RuleTable = (*Table)(nil)

// Table implements provision.RuleTable on the host's nat table, installing
// DNAT rules on the ingress interface's PREROUTING chain.
type Table struct {
	ingress string
}

// New returns a Table forwarding from the given ingress interface. With
// ingress empty, the interface carrying the default IPv4 route is used.
func New(ingress string) (*Table, error) {
	if ingress == "" {
		name, err := defaultRouteInterface()
		if err != nil {
			return nil, fmt.Errorf("discover ingress interface: %w", err)
		}
		ingress = name
	}
	return &Table{ingress: ingress}, nil
}

// Ingress returns the interface rules are installed on.
func (t *Table) Ingress() string { return t.ingress }

func (t *Table) Install(ctx context.Context, rule provision.ForwardRule) error {
	nat := ipt.GetIptable(ipt.IPv4)
	args := []string{
		"-p", rule.Protocol,
		"-i", t.ingress,
		"--dport", strconv.Itoa(rule.HostPort),
		"-j", "DNAT",
		"--to-destination", fmt.Sprintf("%s:%d", rule.DestAddr, rule.DestPort),
		"-m", "comment", "--comment", rule.Comment,
	}
	if err := nat.ProgramRule(ipt.Nat, chain, ipt.Append, args); err != nil {
		return fmt.Errorf("append %s rule for port %d: %w", chain, rule.HostPort, err)
	}
	return nil
}

func (t *Table) Matching(ctx context.Context, hostPort int) ([]provision.RuleHandle, error) {
	nat := ipt.GetIptable(ipt.IPv4)
	out, err := nat.Raw("-t", "nat", "-L", chain, "-n", "--line-numbers")
	if err != nil {
		return nil, fmt.Errorf("list %s rules: %w", chain, err)
	}
	return matchRules(string(out), hostPort), nil
}

func (t *Table) Delete(ctx context.Context, handle provision.RuleHandle) error {
	nat := ipt.GetIptable(ipt.IPv4)
	if _, err := nat.Raw("-t", "nat", "-D", handle.Chain, strconv.Itoa(handle.Line)); err != nil {
		return fmt.Errorf("delete %s rule %d: %w", handle.Chain, handle.Line, err)
	}
	return nil
}

// defaultRouteInterface names the interface carrying the default IPv4
// route.
func defaultRouteInterface() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("list routes: %w", err)
	}
	for _, route := range routes {
		if !isDefaultRoute(route) {
			continue
		}
		link, err := netlink.LinkByIndex(route.LinkIndex)
		if err != nil {
			return "", fmt.Errorf("resolve link %d: %w", route.LinkIndex, err)
		}
		return link.Attrs().Name, nil
	}
	return "", fmt.Errorf("no default IPv4 route found")
}

func isDefaultRoute(route netlink.Route) bool {
	if route.Gw == nil {
		return false
	}
	if route.Dst == nil {
		return true
	}
	ones, _ := route.Dst.Mask.Size()
	return ones == 0 && route.Dst.IP.IsUnspecified()
}
