package main

import (
	"fmt"
	"strings"

	"berth/cmd/berth/ui"

	"github.com/spf13/cobra"
)

func listCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List definitions with their instance state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, cleanup, err := newRegistry(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer cleanup()

			ids, err := reg.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println(ui.Muted("no definitions found"))
				return nil
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				c, err := reg.Get(id)
				if err != nil {
					return err
				}
				st, err := c.State(cmd.Context())
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					id,
					c.Name(),
					ui.State(st.String()),
					c.Box(),
					strings.Join(c.Requires(), ", "),
				})
			}
			fmt.Println(ui.Table([]string{"ID", "Name", "State", "Box", "Requires"}, rows))
			return nil
		},
	}
}
