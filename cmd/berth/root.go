package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"berth/cmd/berth/ui"
	"berth/internal/adapter/docker"
	"berth/internal/adapter/iptables"
	"berth/internal/definition"
	"berth/internal/logging"
	"berth/internal/provision"
	"berth/internal/support/buildinfo"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	definitions string
	variables   string
	recursive   bool
	settle      time.Duration
	ingress     string
	debug       bool
	noColor     bool
}

func rootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "berth CONTAINER VERB [PARAMS...]",
		Short:         "Dependency-aware container provisioning from YAML definitions",
		Version:       buildinfo.Version,
		Args:          cobra.MinimumNArgs(2),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Configure(flags.noColor)
			level := logging.LevelInfo
			if flags.debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, cleanup, err := newRegistry(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer cleanup()
			return runVerb(cmd.Context(), reg, flags.recursive, args[0], args[1], args[2:])
		},
	}

	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable styled output")
	cmd.PersistentFlags().StringVarP(&flags.definitions, "definitions", "d", ".", "Directory holding container definition files")
	cmd.PersistentFlags().StringVarP(&flags.variables, "variables", "v", "", "YAML file with global template variables")
	cmd.PersistentFlags().StringVar(&flags.ingress, "ingress", "", "Ingress interface for port forwarding (default: the default route's interface)")
	cmd.PersistentFlags().DurationVar(&flags.settle, "settle", provision.DefaultSettleDelay, "Pause after starting an instance before reading its addresses")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "Bring up required containers first (up only)")

	cmd.AddCommand(listCmd(&flags))
	return cmd
}

// newRegistry wires the production adapters into a Registry. The returned
// cleanup closes the engine connection.
func newRegistry(ctx context.Context, flags *rootFlags) (*provision.Registry, func(), error) {
	var globals map[string]string
	if flags.variables != "" {
		var err error
		globals, err = definition.Variables(flags.variables)
		if err != nil {
			return nil, nil, err
		}
	}

	runtime, err := docker.NewRuntime(ctx)
	if err != nil {
		return nil, nil, err
	}
	rules, err := iptables.New(flags.ingress)
	if err != nil {
		_ = runtime.Close()
		return nil, nil, err
	}

	reg, err := provision.New(flags.definitions,
		provision.WithRuntime(runtime),
		provision.WithRuleTable(rules),
		provision.WithVariables(globals),
		provision.WithSettleDelay(flags.settle),
	)
	if err != nil {
		_ = runtime.Close()
		return nil, nil, err
	}
	return reg, func() { _ = runtime.Close() }, nil
}

// runVerb dispatches one invocation. Verbs without a lifecycle meaning are
// treated as an action of that name on the target container, with trailing
// key=value arguments as call parameters.
func runVerb(ctx context.Context, reg *provision.Registry, recursive bool, id, verb string, rest []string) error {
	c, err := reg.Get(id)
	if err != nil {
		return err
	}

	switch verb {
	case "create":
		if err := c.Create(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("container %s created", ui.Accent(id)))
	case "destroy":
		if err := c.Destroy(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("container %s destroyed", ui.Accent(id)))
	case "up":
		if err := c.Up(ctx, recursive); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("container %s is up", ui.Accent(id)))
	case "down":
		if err := c.Down(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("container %s is down", ui.Accent(id)))
	case "nat":
		if err := c.Nat(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("port forwards for %s installed", ui.Accent(id)))
	case "denat":
		if err := c.Denat(ctx); err != nil {
			return err
		}
		fmt.Println(ui.SuccessMsg("port forwards for %s removed", ui.Accent(id)))
	case "status":
		return printStatus(ctx, c)
	case "login":
		return login(ctx, c)
	case "exec":
		if len(rest) == 0 {
			return fmt.Errorf("exec requires an action name")
		}
		return invoke(ctx, c, rest[0], rest[1:])
	default:
		return invoke(ctx, c, verb, rest)
	}
	return nil
}

func login(ctx context.Context, c *provision.Container) error {
	st, err := c.State(ctx)
	if err != nil {
		return err
	}
	if st != provision.StateRunning {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("container %s is not running", ui.Accent(c.ID())))
		return nil
	}
	code, err := c.Login(ctx)
	if err != nil {
		return err
	}
	if code != 0 {
		return exitError{code: code}
	}
	return nil
}

func invoke(ctx context.Context, c *provision.Container, action string, rest []string) error {
	params, err := parseParams(rest)
	if err != nil {
		return err
	}
	if err := c.Invoke(ctx, action, params); err != nil {
		return err
	}
	fmt.Println(ui.SuccessMsg("action %s on %s finished", ui.Accent(action), ui.Accent(c.ID())))
	return nil
}

// parseParams converts trailing key=value arguments into action parameters.
func parseParams(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}

	params := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q must be key=value", arg)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("parameter %q has empty key", arg)
		}
		params[key] = value
	}
	return params, nil
}

// exitError carries a command exit status through cobra to main.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
