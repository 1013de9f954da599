package provision

import (
	"fmt"
	"strings"
)

// NotFoundError indicates no definition file exists for a container id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no definition for container %q", e.ID)
}

// DefinitionError indicates a definition file exists but cannot be used.
type DefinitionError struct {
	ID  string
	Err error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("definition %q: %v", e.ID, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// CycleError indicates the requirement graph cannot be linearized.
// Remaining lists the ids still blocked when resolution stalled.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return "unresolvable requirements: " + strings.Join(e.Remaining, ", ")
}

// MissingDependencyError indicates a launch order names a container with no
// instance in the runtime.
type MissingDependencyError struct {
	ID   string
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("requires %s (%s), but it does not exist", e.Name, e.ID)
}

// RequirementError indicates direct requirements of a container are missing
// or stopped. The lifecycle operation on that container is aborted; callers
// decide whether to continue with others.
type RequirementError struct {
	ID string
}

func (e *RequirementError) Error() string {
	return fmt.Sprintf("requirements not met for %s", e.ID)
}

// StepError indicates an action step failed and the remaining steps were
// skipped. Steps already applied stay applied.
type StepError struct {
	Action string
	Step   int
	Exit   int
	Err    error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("action %q step %d: %v", e.Action, e.Step+1, e.Err)
	}
	return fmt.Sprintf("action %q step %d: exit status %d", e.Action, e.Step+1, e.Exit)
}

func (e *StepError) Unwrap() error { return e.Err }

// AddressError indicates an instance has no IPv4 address on the requested
// network device.
type AddressError struct {
	ID     string
	Device string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("container %s has no address on device %q", e.ID, e.Device)
}
