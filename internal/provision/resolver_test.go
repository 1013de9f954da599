package provision_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"berth/internal/adapter/fake"
	"berth/internal/provision"
)

// defWithRequires builds a definition body with the given requirements.
func defWithRequires(name string, requires ...string) string {
	body := minimalDef(name)
	if len(requires) == 0 {
		return body
	}
	body += "requires:\n"
	for _, r := range requires {
		body += "  - " + r + "\n"
	}
	return body
}

func TestLaunchOrderChain(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "app", defWithRequires("App", "db"))
	writeDef(t, dir, "db", defWithRequires("DB", "base"))
	writeDef(t, dir, "base", defWithRequires("Base"))

	rt := fake.NewRuntime()
	rt.Seed("db", false)
	rt.Seed("base", false)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	app, err := reg.Get("app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	order, err := app.LaunchOrder(context.Background())
	if err != nil {
		t.Fatalf("LaunchOrder() error = %v", err)
	}
	if want := []string{"base", "db"}; !reflect.DeepEqual(order, want) {
		t.Errorf("LaunchOrder() = %v, want %v", order, want)
	}
}

func TestLaunchOrderDiamond(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "app", defWithRequires("App", "cache", "web"))
	writeDef(t, dir, "cache", defWithRequires("Cache", "base"))
	writeDef(t, dir, "web", defWithRequires("Web", "base"))
	writeDef(t, dir, "base", defWithRequires("Base"))

	rt := fake.NewRuntime()
	for _, id := range []string{"cache", "web", "base"} {
		rt.Seed(id, false)
	}
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	app, err := reg.Get("app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Eligible ties break in first-seen order, so the result is stable.
	for i := 0; i < 5; i++ {
		order, err := app.LaunchOrder(context.Background())
		if err != nil {
			t.Fatalf("LaunchOrder() error = %v", err)
		}
		if want := []string{"base", "cache", "web"}; !reflect.DeepEqual(order, want) {
			t.Fatalf("LaunchOrder() run %d = %v, want %v", i, order, want)
		}
	}
}

func TestLaunchOrderSharedRequirementOnce(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "app", defWithRequires("App", "a", "b", "shared"))
	writeDef(t, dir, "a", defWithRequires("A", "shared"))
	writeDef(t, dir, "b", defWithRequires("B", "shared"))
	writeDef(t, dir, "shared", defWithRequires("Shared"))

	rt := fake.NewRuntime()
	for _, id := range []string{"a", "b", "shared"} {
		rt.Seed(id, false)
	}
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	app, err := reg.Get("app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	order, err := app.LaunchOrder(context.Background())
	if err != nil {
		t.Fatalf("LaunchOrder() error = %v", err)
	}

	seen := make(map[string]int)
	for _, id := range order {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s appears %d times in %v", id, n, order)
		}
	}
	if len(order) != 3 {
		t.Errorf("len(order) = %d, want 3 (%v)", len(order), order)
	}
	if order[0] != "shared" {
		t.Errorf("order[0] = %s, want shared before its dependents", order[0])
	}
}

func TestLaunchOrderCycle(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "app", defWithRequires("App", "x"))
	writeDef(t, dir, "x", defWithRequires("X", "y"))
	writeDef(t, dir, "y", defWithRequires("Y", "x"))

	rt := fake.NewRuntime()
	rt.Seed("x", false)
	rt.Seed("y", false)
	reg := newRegistry(t, dir, rt, fake.NewRuleTable())

	// Every root reaching the cycle must fail the same way.
	for _, root := range []string{"app", "x", "y"} {
		t.Run(fmt.Sprintf("root %s", root), func(t *testing.T) {
			c, err := reg.Get(root)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			_, err = c.LaunchOrder(context.Background())
			var cycleErr *provision.CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("LaunchOrder() error = %v, want CycleError", err)
			}
			if len(cycleErr.Remaining) == 0 {
				t.Error("CycleError.Remaining is empty")
			}
		})
	}
}

func TestLaunchOrderMissingInstance(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "app", defWithRequires("App", "db"))
	writeDef(t, dir, "db", defWithRequires("DB"))

	// db has a definition but no instance in the runtime.
	reg := newRegistry(t, dir, fake.NewRuntime(), fake.NewRuleTable())

	app, err := reg.Get("app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_, err = app.LaunchOrder(context.Background())
	var missing *provision.MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("LaunchOrder() error = %v, want MissingDependencyError", err)
	}
	if missing.ID != "db" || missing.Name != "DB" {
		t.Errorf("MissingDependencyError = %s (%s), want DB (db)", missing.Name, missing.ID)
	}
}

func TestLaunchOrderUnknownRequirement(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "app", defWithRequires("App", "ghost"))

	reg := newRegistry(t, dir, fake.NewRuntime(), fake.NewRuleTable())

	app, err := reg.Get("app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_, err = app.LaunchOrder(context.Background())
	var notFound *provision.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("LaunchOrder() error = %v, want NotFoundError", err)
	}
}
