package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"berth/cmd/berth/ui"
	"berth/internal/provision"
)

// printStatus renders the status verb: identity, state, addresses, and the
// port forwarding table.
func printStatus(ctx context.Context, c *provision.Container) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Println(ui.InfoMsg("%s %s", ui.Bold(c.Name()), ui.Muted("("+c.ID()+")")))

	pairs := []ui.Pair{
		ui.KV("description", c.Description()),
		ui.KV("state", ui.State(st.State.String())),
		ui.KV("box", c.Box()),
		ui.KV("requires", fallbackDash(strings.Join(st.Requires, ", "))),
	}
	for _, device := range slices.Sorted(maps.Keys(st.Addresses)) {
		pairs = append(pairs, ui.KV(device, st.Addresses[device]))
	}
	fmt.Print(ui.KeyValues("  ", pairs...))

	if len(st.Ports) > 0 {
		rows := make([][]string, len(st.Ports))
		for i, p := range st.Ports {
			rows[i] = []string{
				p.Protocol,
				strconv.Itoa(p.To),
				p.Device + ":" + strconv.Itoa(p.From),
				p.Comment,
			}
		}
		fmt.Println(ui.Table([]string{"Proto", "Host", "Container", "Comment"}, rows))
	}
	return nil
}

func fallbackDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
