package provision_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"berth/internal/adapter/fake"
	"berth/internal/provision"
)

func TestExecuteActionFailFast(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web")+`
actions:
  deploy:
    - step one
    - step two
    - step three
`)

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	rt.ExecExit = func(_ string, spec provision.ExecSpec) int {
		if spec.Command == "step two" {
			return 1
		}
		return 0
	}
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	err = web.ExecuteAction(context.Background(), "deploy", nil)
	var stepErr *provision.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("ExecuteAction() error = %v, want StepError", err)
	}
	if stepErr.Step != 1 || stepErr.Exit != 1 {
		t.Errorf("StepError = step %d exit %d, want step 1 exit 1", stepErr.Step, stepErr.Exit)
	}
	if cmds := execCommands(rt); len(cmds) != 2 {
		t.Errorf("exec commands = %v, want the third step never attempted", cmds)
	}
}

func TestExecuteActionUndefined(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web"))

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := web.ExecuteAction(context.Background(), "nonexistent", nil); err != nil {
		t.Fatalf("ExecuteAction(undefined) error = %v, want nil", err)
	}
	if n := rt.Count("Exec"); n != 0 {
		t.Errorf("Exec called %d times, want 0", n)
	}
}

func TestExecuteActionScopeLayering(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web")+`
variables:
  a: "2"
  b: "3"
actions:
  show:
    - echo $a $b
`)

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable(),
		provision.WithVariables(map[string]string{"a": "1"}))

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := web.ExecuteAction(context.Background(), "show", map[string]string{"b": "4"}); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}

	cmds := execCommands(rt)
	if len(cmds) != 1 || cmds[0] != "echo 2 4" {
		t.Errorf("exec commands = %v, want [echo 2 4]", cmds)
	}
}

func TestExecuteActionRunsAsConfiguredUser(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web")+"user: www\nshell: /bin/ash\nactions:\n  ping:\n    - true\n")

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := web.ExecuteAction(context.Background(), "ping", nil); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}

	calls := rt.Calls("Exec")
	if len(calls) != 1 {
		t.Fatalf("Exec called %d times, want 1", len(calls))
	}
	spec := calls[0].Args[1].(provision.ExecSpec)
	if spec.User != "www" || spec.Shell != "/bin/ash" || spec.Interactive {
		t.Errorf("Exec spec = %+v, want non-interactive www via /bin/ash", spec)
	}
}

func TestCallStep(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "ci", minimalDef("CI")+`
variables:
  VERSION: "1.2"
actions:
  release:
    - !rpc web deploy version=${VERSION}
`)
	writeDef(t, dir, "web", minimalDef("Web")+`
actions:
  deploy:
    - deploy.sh $version
`)

	rt := fake.NewRuntime()
	rt.Seed("ci", true)
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	ci, err := reg.Get("ci")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := ci.ExecuteAction(context.Background(), "release", nil); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}

	calls := rt.Calls("Exec")
	if len(calls) != 1 {
		t.Fatalf("Exec called %d times, want 1", len(calls))
	}
	if name := calls[0].Args[0].(string); name != "web" {
		t.Errorf("Exec target = %q, want web", name)
	}
	spec := calls[0].Args[1].(provision.ExecSpec)
	if spec.Command != "deploy.sh 1.2" {
		t.Errorf("Exec command = %q, want deploy.sh 1.2", spec.Command)
	}
}

func TestCallStepUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "ci", minimalDef("CI")+"actions:\n  release:\n    - !rpc ghost deploy\n")

	rt := fake.NewRuntime()
	rt.Seed("ci", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	ci, err := reg.Get("ci")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	err = ci.ExecuteAction(context.Background(), "release", nil)
	var notFound *provision.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("ExecuteAction() error = %v, want NotFoundError", err)
	}
}

func TestCallStepFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "ci", minimalDef("CI")+`
actions:
  release:
    - !rpc web deploy
    - echo never reached
`)
	writeDef(t, dir, "web", minimalDef("Web")+"actions:\n  deploy:\n    - false\n")

	rt := fake.NewRuntime()
	rt.Seed("ci", true)
	rt.Seed("web", true)
	rt.ExecExit = func(_ string, spec provision.ExecSpec) int {
		if spec.Command == "false" {
			return 1
		}
		return 0
	}
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	ci, err := reg.Get("ci")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	err = ci.ExecuteAction(context.Background(), "release", nil)
	var stepErr *provision.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("ExecuteAction() error = %v, want StepError", err)
	}
	for _, cmd := range execCommands(rt) {
		if strings.Contains(cmd, "never reached") {
			t.Errorf("step after failed call was executed: %v", execCommands(rt))
		}
	}
}

func TestFileDrop(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web")+`
user: www
variables:
  HOST: 10.104.0.5
files:
  /etc/app/app.conf: "host=$HOST\n"
actions:
  configure:
    - !df /etc/app/app.conf
`)

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := web.ExecuteAction(context.Background(), "configure", nil); err != nil {
		t.Fatalf("ExecuteAction() error = %v", err)
	}

	data, ok := rt.File("web", "/etc/app/app.conf")
	if !ok {
		t.Fatal("file was not pushed")
	}
	if got := string(data); got != "host=10.104.0.5\n" {
		t.Errorf("pushed content = %q, want templated body", got)
	}

	calls := rt.Calls("Exec")
	if len(calls) != 2 {
		t.Fatalf("Exec called %d times, want mkdir and chown", len(calls))
	}
	mkdir := calls[0].Args[1].(provision.ExecSpec)
	if mkdir.User != "root" || !strings.HasPrefix(mkdir.Command, "mkdir -p ") {
		t.Errorf("first exec = %+v, want mkdir -p as root", mkdir)
	}
	chown := calls[1].Args[1].(provision.ExecSpec)
	if chown.User != "root" || !strings.Contains(chown.Command, "chown www:www ") {
		t.Errorf("second exec = %+v, want chown www:www as root", chown)
	}
}

func TestFileDropMissingBody(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web")+"actions:\n  configure:\n    - !df /etc/ghost.conf\n")

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	err = web.ExecuteAction(context.Background(), "configure", nil)
	var stepErr *provision.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("ExecuteAction() error = %v, want StepError", err)
	}
	if n := rt.Count("PushFile"); n != 0 {
		t.Errorf("PushFile called %d times, want 0", n)
	}
}

func TestInvoke(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "web", minimalDef("Web")+`
variables:
  TAG: v7
actions:
  deploy:
    - deploy.sh $version
`)

	rt := fake.NewRuntime()
	rt.Seed("web", true)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	web, err := reg.Get("web")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if err := web.Invoke(context.Background(), "deploy", map[string]string{"version": "$TAG"}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	cmds := execCommands(rt)
	if len(cmds) != 1 || cmds[0] != "deploy.sh v7" {
		t.Errorf("exec commands = %v, want [deploy.sh v7]", cmds)
	}
}
