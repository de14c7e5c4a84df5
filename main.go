package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jon-Bright/rccctl/board"
	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/flash"
	"github.com/Jon-Bright/rccctl/mmio"
	"github.com/Jon-Bright/rccctl/rcc"
	"github.com/Jon-Bright/rccctl/sim"
	"github.com/Jon-Bright/rccctl/units"
)

var (
	rootOpts = struct {
		boards  string
		board   string
		sim     bool
		mem     string
		lock    bool
		timeout time.Duration
	}{}

	reqOpts = struct {
		hse    freqFlag
		hseDiv uint8
		bypass bool
		sysclk freqFlag
		hclk   freqFlag
		pclk1  freqFlag
		pclk2  freqFlag
	}{}

	rootCmd = &cobra.Command{
		Use:   "rccctl",
		Short: "Configure the STM32F30x clock tree and GPIO pins",
		Long: "rccctl solves STM32F30x clock requests, freezes them into the RCC and FLASH registers and sets up " +
			"board pins, either on a simulated chip or through a mapping of the chip's physical address space.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !rcc.HSEDivider(reqOpts.hseDiv).Valid() {
				return fmt.Errorf("--hse-div %d out of range 1..16", reqOpts.hseDiv)
			}
			return nil
		},
	}
)

// freqFlag is a frequency flag. Unset flags leave the request's default.
type freqFlag struct {
	set bool
	f   units.Hertz
}

func (f *freqFlag) String() string {
	if !f.set {
		return ""
	}
	return f.f.String()
}

func (f *freqFlag) Set(s string) error {
	h, err := units.Parse(s)
	if err != nil {
		return err
	}
	f.f, f.set = h, true
	return nil
}

func (f *freqFlag) Type() string {
	return "freq"
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootOpts.boards, "boards", "", "A YAML file of board descriptions to use instead of the built-in ones")
	pf.StringVarP(&rootOpts.board, "board", "b", "", "The board whose clock request and pins to use")
	pf.BoolVar(&rootOpts.sim, "sim", false, "Run against a simulated chip instead of the hardware")
	pf.StringVar(&rootOpts.mem, "mem", mmio.MEM_FILE, "The file to map the peripherals from")
	pf.BoolVar(&rootOpts.lock, "lock", false, "Lock the mapped registers in RAM")
	pf.DurationVar(&rootOpts.timeout, "timeout", 0, "How long to wait for each oscillator, PLL lock and clock switch. 0 waits forever.")

	pf.Var(&reqOpts.hse, "hse", "HSE frequency, e.g. 8MHz. Unset means no HSE.")
	pf.Uint8Var(&reqOpts.hseDiv, "hse-div", 1, "HSE divider ahead of the PLL, 1-16")
	pf.BoolVar(&reqOpts.bypass, "bypass", false, "HSE is an external clock rather than a crystal")
	pf.Var(&reqOpts.sysclk, "sysclk", "Requested SYSCLK")
	pf.Var(&reqOpts.hclk, "hclk", "Requested HCLK")
	pf.Var(&reqOpts.pclk1, "pclk1", "Requested PCLK1")
	pf.Var(&reqOpts.pclk2, "pclk2", "Requested PCLK2")

	rootCmd.AddCommand(solveCmd, applyCmd, boardsCmd, serveCmd)
}

func loadBoards() (board.Boards, error) {
	if rootOpts.boards == "" {
		return board.Builtin(), nil
	}
	f, err := os.Open(rootOpts.boards)
	if err != nil {
		return nil, fmt.Errorf("couldn't open boards: %v", err)
	}
	defer f.Close()
	return board.Load(f)
}

// selectedBoard returns the --board board, or an empty board without pins
// if none was given.
func selectedBoard() (board.Board, error) {
	if rootOpts.board == "" {
		return board.Board{}, nil
	}
	bs, err := loadBoards()
	if err != nil {
		return board.Board{}, err
	}
	return bs.Find(rootOpts.board)
}

// request fills c from the board and then from the frequency flags, which
// win where both are set.
func request(b board.Board, c *rcc.Cfgr) *rcc.Cfgr {
	b.Request(c)
	if reqOpts.hse.set {
		c.HSE(reqOpts.hse.f, rcc.HSEDivider(reqOpts.hseDiv), rcc.HSEBypass(reqOpts.bypass))
	}
	for _, f := range []struct {
		v   freqFlag
		set func(units.Hertz) *rcc.Cfgr
	}{
		{reqOpts.sysclk, c.SysClk},
		{reqOpts.hclk, c.HCLK},
		{reqOpts.pclk1, c.PCLK1},
		{reqOpts.pclk2, c.PCLK2},
	} {
		if f.v.set {
			f.set(f.v.f)
		}
	}
	return c.ReadyTimeout(rootOpts.timeout)
}

// target is an opened chip: the register space and the peripherals
// constrained into handles.
type target struct {
	space *mmio.Space
	chip  *sim.Chip // nil on hardware
	dev   *device.Peripherals
	rcc   rcc.Rcc
	flash flash.Parts
}

func openTarget() (*target, error) {
	if rootOpts.sim {
		chip := sim.New(sim.Options{HSEReadyAfter: 100, PLLLockAfter: 200, SwitchAfter: 2})
		return newTarget(chip.Space(), chip)
	}
	s, err := device.Map(rootOpts.mem)
	if err != nil {
		return nil, fmt.Errorf("couldn't map peripherals: %v", err)
	}
	if rootOpts.lock {
		if err := s.Lock(); err != nil {
			s.Close() // Ignore error
			return nil, err
		}
	}
	return newTarget(s, nil)
}

func newTarget(s *mmio.Space, chip *sim.Chip) (*target, error) {
	t := &target{space: s, chip: chip}
	var err error
	t.dev, err = device.Take(s)
	if err != nil {
		return nil, err
	}
	t.rcc, err = rcc.Constrain(t.dev.RCC)
	if err != nil {
		return nil, err
	}
	t.flash, err = flash.Constrain(t.dev.FLASH)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *target) Close() error {
	return t.space.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed: %v", err)
	}
}
