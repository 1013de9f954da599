package docker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/client"
)

// Ping verifies the docker daemon is reachable before the first engine
// call.
func Ping(ctx context.Context, cli *client.Client) error {
	if _, err := cli.Ping(ctx); err != nil {
		if client.IsErrConnectionFailed(err) {
			return fmt.Errorf("docker daemon is not reachable: %w", err)
		}
		return fmt.Errorf("connect to docker daemon: %w", err)
	}
	slog.Debug("docker daemon reachable")
	return nil
}
