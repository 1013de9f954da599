package provision

import (
	"context"
	"fmt"
	"path"
	"strings"

	"berth/internal/definition"
)

// ExecuteAction runs the named action's steps in order with the given call
// parameters. An undefined action is a logged no-op. The first failing
// step aborts the rest of the action with a StepError; completed steps are
// not rolled back.
func (c *Container) ExecuteAction(ctx context.Context, name string, params map[string]string) error {
	steps, ok := c.def.Actions[name]
	if !ok {
		c.log.Info("action not defined", "action", name)
		return nil
	}
	c.log.Info("executing action", "action", name)
	for i, step := range steps {
		if err := c.executeStep(ctx, name, i, step, params); err != nil {
			return err
		}
	}
	return nil
}

// Invoke runs an action with parameter values templated against this
// container's variables, the way a cross-container call step would. The
// CLI uses it for the exec verb and for custom verbs.
func (c *Container) Invoke(ctx context.Context, action string, params map[string]string) error {
	return c.call(ctx, c, action, params)
}

func (c *Container) executeStep(ctx context.Context, action string, index int, step definition.Step, params map[string]string) error {
	switch s := step.(type) {
	case definition.ShellLine:
		line := c.reg.tmpl.Apply(string(s), c.def.Variables, params)
		c.log.Info(line)
		exit, err := c.execute(ctx, c.def.User, line)
		if err != nil {
			c.log.Error("execution failed", "error", err)
			return &StepError{Action: action, Step: index, Err: err}
		}
		if exit != 0 {
			c.log.Error("execution failed", "exit", exit)
			return &StepError{Action: action, Step: index, Exit: exit}
		}
		return nil
	case definition.Call:
		target, err := c.reg.Get(s.Target)
		if err != nil {
			return err
		}
		if err := c.call(ctx, target, s.Action, s.Params); err != nil {
			return fmt.Errorf("call %s %s: %w", s.Target, s.Action, err)
		}
		return nil
	case definition.FileDrop:
		return c.dropFile(ctx, action, index, s.Path)
	default:
		return &StepError{Action: action, Step: index, Err: fmt.Errorf("unsupported step type %T", step)}
	}
}

// call templates the parameter values against this container's variables
// and executes the action on target.
func (c *Container) call(ctx context.Context, target *Container, action string, params map[string]string) error {
	resolved := make(map[string]string, len(params))
	for key, value := range params {
		resolved[key] = c.reg.tmpl.Apply(value, c.def.Variables)
	}
	return target.ExecuteAction(ctx, action, resolved)
}

// dropFile renders the registered file body against the container's
// variables and writes it into the instance, owned by the configured user.
func (c *Container) dropFile(ctx context.Context, action string, index int, filename string) error {
	body, ok := c.def.Files[filename]
	if !ok {
		err := fmt.Errorf("no file body registered for %q", filename)
		c.log.Error("file drop failed", "path", filename, "error", err)
		return &StepError{Action: action, Step: index, Err: err}
	}

	c.log.Info("dropping file", "path", filename)
	fail := func(err error) error {
		c.log.Error("file drop failed", "path", filename, "error", err)
		return &StepError{Action: action, Step: index, Err: err}
	}

	// Directory creation and the copy itself run as root; ownership is
	// handed to the configured user afterwards.
	if dir := path.Dir(filename); dir != "/" && dir != "." {
		exit, err := c.execute(ctx, "root", "mkdir -p "+shellQuote(dir))
		if err != nil {
			return fail(err)
		}
		if exit != 0 {
			return fail(fmt.Errorf("mkdir -p %s: exit status %d", dir, exit))
		}
	}

	content := c.reg.tmpl.Apply(body, c.def.Variables)
	if err := c.reg.runtime.PushFile(ctx, c.def.ID, filename, []byte(content)); err != nil {
		return fail(err)
	}

	owner := c.def.User
	chown := fmt.Sprintf("chown %s:%s %s", owner, owner, shellQuote(filename))
	exit, err := c.execute(ctx, "root", chown)
	if err != nil {
		return fail(err)
	}
	if exit != 0 {
		return fail(fmt.Errorf("%s: exit status %d", chown, exit))
	}
	return nil
}

// execute runs one shell line inside the instance as the given user.
func (c *Container) execute(ctx context.Context, user, command string) (int, error) {
	return c.reg.runtime.Exec(ctx, c.def.ID, ExecSpec{
		User:    user,
		Shell:   c.def.Shell,
		Command: command,
	})
}

// shellQuote wraps s in single quotes for safe interpolation into a shell
// line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
