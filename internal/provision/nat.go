package provision

import (
	"context"
	"fmt"
)

// Nat installs the container's port forwards. Existing rules for the same
// host port are removed first, so reinstalling is idempotent. A logged
// no-op if the instance is not running, since the target address only
// exists then.
func (c *Container) Nat(ctx context.Context) error {
	running, err := c.running(ctx)
	if err != nil {
		return err
	}
	if !running {
		c.log.Info("not running, no NAT needed")
		return nil
	}
	for _, port := range c.def.Ports {
		addr, err := c.Address(ctx, port.Device)
		if err != nil {
			return err
		}
		c.log.Info("forwarding port",
			"protocol", port.Protocol,
			"host", port.To,
			"destination", fmt.Sprintf("%s:%d", addr, port.From),
			"device", port.Device)
		if err := c.removeForwards(ctx, port.To); err != nil {
			return err
		}
		rule := ForwardRule{
			Protocol: port.Protocol,
			HostPort: port.To,
			DestAddr: addr,
			DestPort: port.From,
			Comment:  port.Comment,
		}
		if err := c.reg.rules.Install(ctx, rule); err != nil {
			return fmt.Errorf("install forward for %d: %w", port.To, err)
		}
	}
	return nil
}

// Denat removes the container's port forwards. Rules are keyed by host
// port, so removal works in any instance state.
func (c *Container) Denat(ctx context.Context) error {
	for _, port := range c.def.Ports {
		c.log.Info("removing port forward", "protocol", port.Protocol, "host", port.To)
		if err := c.removeForwards(ctx, port.To); err != nil {
			return err
		}
	}
	return nil
}

// removeForwards deletes every rule matching hostPort, highest line first.
// Deleting from a numbered table renumbers the rules below the deleted
// one, so ascending order would skip matches.
func (c *Container) removeForwards(ctx context.Context, hostPort int) error {
	handles, err := c.reg.rules.Matching(ctx, hostPort)
	if err != nil {
		return fmt.Errorf("list forwards for %d: %w", hostPort, err)
	}
	for i := len(handles) - 1; i >= 0; i-- {
		if err := c.reg.rules.Delete(ctx, handles[i]); err != nil {
			return fmt.Errorf("delete forward for %d: %w", hostPort, err)
		}
	}
	return nil
}

// Address returns the instance's IPv4 address on the named device. The
// device table is fetched once per operation and cached on the container.
func (c *Container) Address(ctx context.Context, device string) (string, error) {
	if c.addrs == nil {
		addrs, err := c.reg.runtime.Addresses(ctx, c.def.ID)
		if err != nil {
			return "", fmt.Errorf("addresses of %s: %w", c.def.ID, err)
		}
		c.addrs = addrs
	}
	addr, ok := c.addrs[device]
	if !ok || addr == "" {
		return "", &AddressError{ID: c.def.ID, Device: device}
	}
	return addr, nil
}
