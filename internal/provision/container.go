package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"berth/internal/definition"
)

// State is the engine-derived lifecycle state of a container. It is read
// fresh from the runtime at the start of each operation, never cached
// across calls.
type State uint8

const (
	StateAbsent State = iota
	StateStopped
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Container pairs one definition with the lifecycle and action operations
// the CLI drives. Instances are created by the Registry and shared within
// one process run.
type Container struct {
	def *definition.Definition
	reg *Registry
	log *slog.Logger

	// addrs caches the device address table between NAT installs within
	// one operation; cleared whenever instance state changes.
	addrs map[string]string
}

func newContainer(def *definition.Definition, reg *Registry) *Container {
	return &Container{
		def: def,
		reg: reg,
		log: slog.With("container", def.Name),
	}
}

// ID returns the definition file id.
func (c *Container) ID() string { return c.def.ID }

// Name returns the display name used in log output.
func (c *Container) Name() string { return c.def.Name }

// Description returns the definition's description line.
func (c *Container) Description() string { return c.def.Description }

// Box returns the image the instance is created from.
func (c *Container) Box() string { return c.def.Box }

// Ports returns the configured forwarding declarations.
func (c *Container) Ports() []definition.Port { return c.def.Ports }

// Requires returns the ids of the direct requirements.
func (c *Container) Requires() []string { return c.def.Requires }

// State reads the instance state from the runtime.
func (c *Container) State(ctx context.Context) (State, error) {
	info, err := c.reg.runtime.Inspect(ctx, c.def.ID)
	if err != nil {
		return StateAbsent, fmt.Errorf("inspect %s: %w", c.def.ID, err)
	}
	switch {
	case !info.Exists:
		return StateAbsent, nil
	case info.Running:
		return StateRunning, nil
	default:
		return StateStopped, nil
	}
}

func (c *Container) exists(ctx context.Context) (bool, error) {
	st, err := c.State(ctx)
	return st != StateAbsent, err
}

func (c *Container) running(ctx context.Context) (bool, error) {
	st, err := c.State(ctx)
	return st == StateRunning, err
}

// CheckRequirements verifies every direct requirement exists and, unless
// ignoreStopped, is running. Each violation is logged; a RequirementError
// is returned if any were found.
func (c *Container) CheckRequirements(ctx context.Context, ignoreStopped bool) error {
	okay := true
	for _, id := range c.def.Requires {
		req, err := c.reg.Get(id)
		if err != nil {
			return err
		}
		st, err := req.State(ctx)
		if err != nil {
			return err
		}
		switch {
		case st == StateAbsent:
			c.log.Error("requirement does not exist", "requires", req.Name(), "id", req.ID())
			okay = false
		case !ignoreStopped && st != StateRunning:
			c.log.Error("requirement is not running", "requires", req.Name(), "id", req.ID())
			okay = false
		}
	}
	if !okay {
		c.log.Error("requirements not met")
		return &RequirementError{ID: c.def.ID}
	}
	return nil
}

// Create provisions a new instance from the configured box, waits for its
// network to settle, installs port forwards, and runs the create and up
// actions. Requirements only have to exist; recursion is up's concern.
func (c *Container) Create(ctx context.Context) error {
	st, err := c.State(ctx)
	if err != nil {
		return err
	}
	if st != StateAbsent {
		c.log.Info("already exists")
		return nil
	}
	if err := c.CheckRequirements(ctx, true); err != nil {
		return err
	}

	c.log.Info("creating container", "box", c.def.Box)
	spec := LaunchSpec{Name: c.def.ID, Image: c.def.Box}
	for _, mp := range c.def.Mountpoints {
		c.log.Info("mounting", "mountpoint", mp.Name, "source", mp.Source, "path", mp.Path)
		spec.Mounts = append(spec.Mounts, Mount{Name: mp.Name, Source: mp.Source, Target: mp.Path})
	}
	if err := c.reg.runtime.Launch(ctx, spec); err != nil {
		c.log.Error("creation failed", "error", err)
		return fmt.Errorf("launch %s: %w", c.def.ID, err)
	}
	c.addrs = nil

	c.settle(ctx)
	if err := c.Nat(ctx); err != nil {
		return err
	}
	if err := c.runAction(ctx, "create"); err != nil {
		return err
	}
	if err := c.runAction(ctx, "up"); err != nil {
		return err
	}
	c.log.Info("done")
	return nil
}

// Destroy tears the instance down. A running instance is first taken down
// (down action, forwards removed, stopped); the destroy action runs in any
// case before the instance is deleted.
func (c *Container) Destroy(ctx context.Context) error {
	st, err := c.State(ctx)
	if err != nil {
		return err
	}
	if st == StateAbsent {
		c.log.Info("does not exist")
		return nil
	}
	if st == StateRunning {
		if err := c.runAction(ctx, "down"); err != nil {
			return err
		}
		if err := c.Denat(ctx); err != nil {
			return err
		}
		c.log.Info("stopping")
		if err := c.reg.runtime.Stop(ctx, c.def.ID); err != nil {
			return fmt.Errorf("stop %s: %w", c.def.ID, err)
		}
		c.addrs = nil
	}
	if err := c.runAction(ctx, "destroy"); err != nil {
		return err
	}
	c.log.Info("deleting instance")
	if err := c.reg.runtime.Delete(ctx, c.def.ID); err != nil {
		return fmt.Errorf("delete %s: %w", c.def.ID, err)
	}
	c.addrs = nil
	return nil
}

// Up starts the instance, installs port forwards, and runs the up action.
// With recursive set, not-yet-running requirements are brought up first in
// dependency order.
func (c *Container) Up(ctx context.Context, recursive bool) error {
	running, err := c.running(ctx)
	if err != nil {
		return err
	}
	if running {
		c.log.Info("already running")
		return nil
	}
	if err := c.CheckRequirements(ctx, recursive); err != nil {
		return err
	}

	if recursive {
		order, err := c.LaunchOrder(ctx)
		if err != nil {
			return err
		}
		for _, id := range order {
			req, err := c.reg.Get(id)
			if err != nil {
				return err
			}
			reqRunning, err := req.running(ctx)
			if err != nil {
				return err
			}
			if reqRunning {
				continue
			}
			if err := req.Up(ctx, false); err != nil {
				return fmt.Errorf("bring up %s: %w", id, err)
			}
		}
	}

	c.log.Info("starting")
	if err := c.reg.runtime.Start(ctx, c.def.ID); err != nil {
		return fmt.Errorf("start %s: %w", c.def.ID, err)
	}
	c.addrs = nil

	c.settle(ctx)
	if err := c.Nat(ctx); err != nil {
		return err
	}
	if err := c.runAction(ctx, "up"); err != nil {
		return err
	}
	c.log.Info("done")
	return nil
}

// Down runs the down action, removes port forwards, and stops the instance.
func (c *Container) Down(ctx context.Context) error {
	running, err := c.running(ctx)
	if err != nil {
		return err
	}
	if !running {
		c.log.Info("not running")
		return nil
	}

	c.log.Info("stopping")
	if err := c.runAction(ctx, "down"); err != nil {
		return err
	}
	if err := c.Denat(ctx); err != nil {
		return err
	}
	if err := c.reg.runtime.Stop(ctx, c.def.ID); err != nil {
		return fmt.Errorf("stop %s: %w", c.def.ID, err)
	}
	c.addrs = nil
	c.log.Info("done")
	return nil
}

// Login opens an interactive shell in the running instance as the
// configured user and returns the shell's exit status.
func (c *Container) Login(ctx context.Context) (int, error) {
	running, err := c.running(ctx)
	if err != nil {
		return 0, err
	}
	if !running {
		c.log.Info("not running")
		return 0, nil
	}
	return c.reg.runtime.Exec(ctx, c.def.ID, ExecSpec{
		User:        c.def.User,
		Shell:       c.def.Shell,
		Interactive: true,
	})
}

// Status is the runtime-derived view reported by the status verb.
type Status struct {
	State     State
	Addresses map[string]string
	Ports     []definition.Port
	Requires  []string
}

// Status reads the instance state and, when running, its addresses.
func (c *Container) Status(ctx context.Context) (Status, error) {
	st, err := c.State(ctx)
	if err != nil {
		return Status{}, err
	}
	s := Status{State: st, Ports: c.def.Ports, Requires: c.def.Requires}
	if st == StateRunning {
		addrs, err := c.reg.runtime.Addresses(ctx, c.def.ID)
		if err != nil {
			c.log.Debug("addresses unavailable", "error", err)
		} else {
			s.Addresses = addrs
		}
	}
	return s, nil
}

// runAction executes a lifecycle action and tolerates step failures: they
// abort the action but not the surrounding lifecycle transition. Anything
// other than a StepError propagates.
func (c *Container) runAction(ctx context.Context, name string) error {
	err := c.ExecuteAction(ctx, name, nil)
	if err == nil {
		return nil
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return nil
	}
	return err
}

// settle pauses after an instance starts. Address assignment inside a
// fresh instance is asynchronous; the runtime reports nothing useful until
// it has finished.
func (c *Container) settle(ctx context.Context) {
	if c.reg.settle <= 0 {
		return
	}
	c.log.Info("waiting for network to settle", "delay", c.reg.settle)
	timer := time.NewTimer(c.reg.settle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
