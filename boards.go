package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List the known boards",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bs, err := loadBoards()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, n := range bs.Names() {
			fmt.Fprintf(out, "%-20s %s\n", n, bs[n].Description)
		}
		return nil
	},
}
