package provision

import "context"

// InstanceInfo describes the engine's view of a container instance.
type InstanceInfo struct {
	Exists  bool
	Running bool
}

// Mount is one host directory bound into an instance at launch.
type Mount struct {
	Name   string
	Source string
	Target string
}

// LaunchSpec carries everything needed to create and start an instance.
type LaunchSpec struct {
	Name   string
	Image  string
	Mounts []Mount
}

// ExecSpec describes one command run inside an instance. An empty Command
// with Interactive set opens a bare shell.
type ExecSpec struct {
	User        string
	Shell       string
	Command     string
	Interactive bool
}

// ContainerRuntime abstracts the container engine.
// Production: adapter/docker.Runtime (wrapping Docker *client.Client)
// Testing: adapter/fake.Runtime
type ContainerRuntime interface {
	Inspect(ctx context.Context, name string) (InstanceInfo, error)

	// Launch creates an instance from spec (pulling the image on demand)
	// and starts it.
	Launch(ctx context.Context, spec LaunchSpec) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error

	// Exec runs spec inside the instance and returns its exit status.
	Exec(ctx context.Context, name string, spec ExecSpec) (int, error)
	PushFile(ctx context.Context, name, path string, data []byte) error

	// Addresses maps the instance's network devices to IPv4 addresses.
	Addresses(ctx context.Context, name string) (map[string]string, error)

	Close() error
}

// ForwardRule is one host-to-instance destination-NAT mapping.
type ForwardRule struct {
	Protocol string
	HostPort int
	DestAddr string
	DestPort int
	Comment  string
}

// RuleHandle identifies one installed rule by its position in a chain,
// valid until the chain is next modified.
type RuleHandle struct {
	Chain string
	Line  int
}

// RuleTable abstracts the host's NAT rule table.
// Production: adapter/iptables.Table
// Testing: adapter/fake.RuleTable
type RuleTable interface {
	Install(ctx context.Context, rule ForwardRule) error

	// Matching returns handles for every rule whose destination port
	// equals hostPort, in ascending line order.
	Matching(ctx context.Context, hostPort int) ([]RuleHandle, error)
	Delete(ctx context.Context, handle RuleHandle) error
}
