package rcc

import (
	"fmt"

	"github.com/Jon-Bright/rccctl/units"
)

// Clocks are the frozen clock frequencies. A Clocks value is only made by
// Freeze, after the hardware has been switched to them.
type Clocks struct {
	hclk   units.Hertz
	pclk1  units.Hertz
	pclk2  units.Hertz
	sysclk units.Hertz
	ppre1  uint8
	ppre2  uint8
}

func clocksOf(s Solution) Clocks {
	return Clocks{
		hclk:   s.hclk,
		pclk1:  s.pclk1,
		pclk2:  s.pclk2,
		sysclk: s.sysclk,
		ppre1:  uint8(PPREDivider(s.ppre1)),
		ppre2:  uint8(PPREDivider(s.ppre2)),
	}
}

// HCLK returns the AHB frequency.
func (c Clocks) HCLK() units.Hertz { return c.hclk }

// PCLK1 returns the APB1 frequency.
func (c Clocks) PCLK1() units.Hertz { return c.pclk1 }

// PCLK2 returns the APB2 frequency.
func (c Clocks) PCLK2() units.Hertz { return c.pclk2 }

// SysClk returns the system clock frequency.
func (c Clocks) SysClk() units.Hertz { return c.sysclk }

// PPRE1 returns the APB1 prescaler ratio, for baud and timer calculations.
func (c Clocks) PPRE1() uint8 { return c.ppre1 }

// PPRE2 returns the APB2 prescaler ratio.
func (c Clocks) PPRE2() uint8 { return c.ppre2 }

// TimerClock1 returns the clock of the timers on APB1, which run at twice
// PCLK1 whenever APB1 is divided down.
func (c Clocks) TimerClock1() units.Hertz {
	return timerClock(c.pclk1, c.ppre1)
}

// TimerClock2 returns the clock of the timers on APB2.
func (c Clocks) TimerClock2() units.Hertz {
	return timerClock(c.pclk2, c.ppre2)
}

func timerClock(pclk units.Hertz, ppre uint8) units.Hertz {
	if ppre == 1 {
		return pclk
	}
	return 2 * pclk
}

func (c Clocks) String() string {
	return fmt.Sprintf("sysclk=%v hclk=%v pclk1=%v (/%d) pclk2=%v (/%d)",
		c.sysclk, c.hclk, c.pclk1, c.ppre1, c.pclk2, c.ppre2)
}
