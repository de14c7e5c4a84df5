package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/Jon-Bright/rccctl/board"
)

var (
	applyOpts = struct {
		power bool
	}{}

	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Freeze the clock request and set up the board's pins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := selectedBoard()
			if err != nil {
				return err
			}
			t, err := openTarget()
			if err != nil {
				return err
			}
			defer t.Close()
			return apply(cmd.OutOrStdout(), t, b)
		},
	}
)

func init() {
	applyCmd.Flags().BoolVar(&applyOpts.power, "power", true, "Switch on the board's supply, if it has one")
}

// apply freezes the clocks, then sets up pins and power.
func apply(out io.Writer, t *target, b board.Board) error {
	c := request(b, t.rcc.CFGR)
	clk, err := c.Freeze(t.flash.ACR)
	if err != nil {
		return fmt.Errorf("couldn't freeze clocks: %w", err)
	}
	fmt.Fprintf(out, "%v\n", clk)
	fmt.Fprintf(out, "timers: APB1 %v, APB2 %v\n", clk.TimerClock1(), clk.TimerClock2())

	ports, err := b.SplitPorts(t.dev, t.rcc.AHB)
	if err != nil {
		return err
	}
	pins, err := b.ApplyPins(ports)
	if err != nil {
		return err
	}
	for _, p := range pins {
		fmt.Fprintf(out, "%v\n", p)
	}
	if applyOpts.power && b.Power != nil {
		if _, err := b.PowerOn(ports); err != nil {
			return fmt.Errorf("failed power-on: %v", err)
		}
	}
	log.Printf("Applied %s", boardName(b))
	return nil
}

func boardName(b board.Board) string {
	if b.Name == "" {
		return "clock request"
	}
	return b.Name
}
