package fake

import (
	"context"
	"fmt"
	"sync"

	"berth/internal/provision"
)

var _ provision.ContainerRuntime = (*Runtime)(nil)

type instanceState struct {
	Spec    provision.LaunchSpec
	Running bool
	Files   map[string][]byte
}

// Runtime is an in-memory implementation of provision.ContainerRuntime.
// Address tables are kept apart from instances so tests can declare them
// before the instance is launched.
type Runtime struct {
	CallRecorder
	mu        sync.Mutex
	instances map[string]*instanceState
	addrs     map[string]map[string]string

	InspectErr  func(ctx context.Context, name string) error
	LaunchErr   func(ctx context.Context, spec provision.LaunchSpec) error
	StartErr    func(ctx context.Context, name string) error
	StopErr     func(ctx context.Context, name string) error
	DeleteErr   func(ctx context.Context, name string) error
	ExecErr     func(ctx context.Context, name string, spec provision.ExecSpec) error
	PushFileErr func(ctx context.Context, name, path string) error

	// ExecExit supplies the exit status for Exec calls; nil means zero.
	ExecExit func(name string, spec provision.ExecSpec) int
}

// NewRuntime creates an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		instances: make(map[string]*instanceState),
		addrs:     make(map[string]map[string]string),
	}
}

// Seed registers an instance without going through Launch.
func (r *Runtime) Seed(name string, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = &instanceState{
		Spec:    provision.LaunchSpec{Name: name},
		Running: running,
		Files:   make(map[string][]byte),
	}
}

// SetAddresses sets the device address table reported for name.
func (r *Runtime) SetAddresses(name string, addrs map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[name] = addrs
}

// File returns the content pushed to path inside name.
func (r *Runtime) File(name, path string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	if !ok {
		return nil, false
	}
	data, ok := inst.Files[path]
	return data, ok
}

func (r *Runtime) Inspect(ctx context.Context, name string) (provision.InstanceInfo, error) {
	r.record("Inspect", name)
	if r.InspectErr != nil {
		if err := r.InspectErr(ctx, name); err != nil {
			return provision.InstanceInfo{}, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return provision.InstanceInfo{Exists: false}, nil
	}
	return provision.InstanceInfo{Exists: true, Running: inst.Running}, nil
}

func (r *Runtime) Launch(ctx context.Context, spec provision.LaunchSpec) error {
	r.record("Launch", spec)
	if r.LaunchErr != nil {
		if err := r.LaunchErr(ctx, spec); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[spec.Name]; ok {
		return fmt.Errorf("instance %q already exists", spec.Name)
	}
	r.instances[spec.Name] = &instanceState{
		Spec:    spec,
		Running: true,
		Files:   make(map[string][]byte),
	}
	return nil
}

func (r *Runtime) Start(ctx context.Context, name string) error {
	r.record("Start", name)
	if r.StartErr != nil {
		if err := r.StartErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return fmt.Errorf("instance %q not found", name)
	}
	inst.Running = true
	return nil
}

func (r *Runtime) Stop(ctx context.Context, name string) error {
	r.record("Stop", name)
	if r.StopErr != nil {
		if err := r.StopErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return fmt.Errorf("instance %q not found", name)
	}
	inst.Running = false
	return nil
}

func (r *Runtime) Delete(ctx context.Context, name string) error {
	r.record("Delete", name)
	if r.DeleteErr != nil {
		if err := r.DeleteErr(ctx, name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.instances, name)
	return nil
}

func (r *Runtime) Exec(ctx context.Context, name string, spec provision.ExecSpec) (int, error) {
	r.record("Exec", name, spec)
	if r.ExecErr != nil {
		if err := r.ExecErr(ctx, name, spec); err != nil {
			return 0, err
		}
	}
	r.mu.Lock()
	inst, ok := r.instances[name]
	running := ok && inst.Running
	r.mu.Unlock()

	if !running {
		return 0, fmt.Errorf("instance %q is not running", name)
	}
	if r.ExecExit != nil {
		return r.ExecExit(name, spec), nil
	}
	return 0, nil
}

func (r *Runtime) PushFile(ctx context.Context, name, path string, data []byte) error {
	r.record("PushFile", name, path)
	if r.PushFileErr != nil {
		if err := r.PushFileErr(ctx, name, path); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return fmt.Errorf("instance %q not found", name)
	}
	inst.Files[path] = append([]byte(nil), data...)
	return nil
}

func (r *Runtime) Addresses(ctx context.Context, name string) (map[string]string, error) {
	r.record("Addresses", name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; !ok {
		return nil, fmt.Errorf("instance %q not found", name)
	}
	out := make(map[string]string, len(r.addrs[name]))
	for dev, addr := range r.addrs[name] {
		out[dev] = addr
	}
	return out, nil
}

func (r *Runtime) Close() error {
	r.record("Close")
	return nil
}
