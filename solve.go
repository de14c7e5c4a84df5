package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jon-Bright/rccctl/rcc"
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a clock request without touching any registers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := selectedBoard()
		if err != nil {
			return err
		}
		c := request(b, rcc.NewRequest())
		s, err := rcc.Solve(c)
		if err != nil {
			return fmt.Errorf("couldn't solve %v: %w", c, err)
		}
		steps, err := c.Plan()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%v\n", s)
		fmt.Fprintf(out, "steps: %s\n", strings.Join(steps, ", "))
		return nil
	},
}
