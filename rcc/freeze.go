package rcc

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/flash"
)

var (
	ErrFrozen     = errors.New("clock configuration already frozen")
	ErrNoHardware = errors.New("request isn't bound to an RCC")

	ErrNotReady     = errors.New("hardware not ready")
	ErrHSENotReady  = fmt.Errorf("HSE not ready: %w", ErrNotReady)
	ErrPLLNotLocked = fmt.Errorf("PLL not locked: %w", ErrNotReady)
	ErrSwitchStuck  = fmt.Errorf("clock switch not acknowledged: %w", ErrNotReady)
)

// Polls between deadline checks in bounded waits.
const POLLS_PER_CHECK = 1024

// Freeze solves the request and switches the hardware to the result:
// flash latency first, then the HSE and PLL as needed, then prescalers and
// clock source in a single CFGR write. Constraint errors are returned
// before any register is touched. A request can be frozen once.
func (c *Cfgr) Freeze(acr *flash.ACR) (Clocks, error) {
	if c.rcc == nil {
		return Clocks{}, ErrNoHardware
	}
	if acr == nil {
		return Clocks{}, errors.New("no FLASH_ACR handle")
	}
	if c.frozen.Taken() {
		return Clocks{}, ErrFrozen
	}
	sol, err := Solve(c)
	if err != nil {
		return Clocks{}, err
	}
	steps, err := order(activation, sol)
	if err != nil {
		return Clocks{}, err
	}
	if c.frozen.Take("RCC_CFGR") != nil {
		return Clocks{}, ErrFrozen
	}
	q := &sequencer{sol: sol, rcc: c.rcc, acr: acr, timeout: c.timeout}
	log.Printf("Freezing clocks: %v\n", sol)
	for _, st := range steps {
		log.Printf("Step %s\n", st.name)
		if err := st.run(q); err != nil {
			return Clocks{}, fmt.Errorf("couldn't %s: %w", st.name, err)
		}
	}
	return clocksOf(sol), nil
}

// MustFreeze is like Freeze but panics on error.
func (c *Cfgr) MustFreeze(acr *flash.ACR) Clocks {
	clk, err := c.Freeze(acr)
	if err != nil {
		panic(fmt.Sprintf("rcc: %v", err))
	}
	return clk
}

// Frozen reports whether Freeze has been started on the request.
func (c *Cfgr) Frozen() bool {
	return c.frozen.Taken()
}

type sequencer struct {
	sol     Solution
	rcc     *device.RCC
	acr     *flash.ACR
	timeout time.Duration
}

// wait spins until ready returns true. With a zero timeout it never gives
// up.
func (q *sequencer) wait(what string, ready func() bool, notReady error) error {
	log.Printf("Waiting for %s\n", what)
	var deadline time.Time
	if q.timeout > 0 {
		deadline = time.Now().Add(q.timeout)
	}
	i := 0
	for !ready() {
		i++
		if q.timeout > 0 && i%POLLS_PER_CHECK == 0 && time.Now().After(deadline) {
			return fmt.Errorf("%w after %v (%d polls)", notReady, q.timeout, i)
		}
	}
	log.Printf("Done %d\n", i)
	return nil
}

func (q *sequencer) setLatency() error {
	return q.acr.SetLatency(q.sol.latency)
}

func (q *sequencer) hseOn() error {
	bits := uint32(device.RCC_CR_HSEON)
	if q.sol.hse.bypass {
		bits |= device.RCC_CR_HSEBYP
	}
	q.rcc.CR.SetBits(bits)
	return nil
}

func (q *sequencer) hseReady() error {
	return q.wait("HSE ready", func() bool {
		return q.rcc.CR.HasBits(device.RCC_CR_HSERDY)
	}, ErrHSENotReady)
}

func (q *sequencer) prediv() error {
	q.rcc.CFGR2.ReplaceBits(q.sol.hse.divider-1, device.RCC_CFGR2_PREDIV_MASK, device.RCC_CFGR2_PREDIV_POS)
	return nil
}

func (q *sequencer) pllConfig() error {
	// CFGR PLLXTPRE mirrors PREDIV bit 0, so CFGR is only ever modified.
	q.rcc.CFGR.Modify(func(v uint32) uint32 {
		v &^= device.RCC_CFGR_PLLSRC | device.RCC_CFGR_PLLMUL_MASK<<device.RCC_CFGR_PLLMUL_POS
		v |= q.sol.PLLMulBits() << device.RCC_CFGR_PLLMUL_POS
		if q.sol.hse != nil {
			v |= device.RCC_CFGR_PLLSRC
		}
		return v
	})
	return nil
}

func (q *sequencer) pllOn() error {
	q.rcc.CR.SetBits(device.RCC_CR_PLLON)
	return nil
}

func (q *sequencer) pllLock() error {
	return q.wait("PLL lock", func() bool {
		return q.rcc.CR.HasBits(device.RCC_CR_PLLRDY)
	}, ErrPLLNotLocked)
}

func (q *sequencer) switchSource() error {
	const mask = device.RCC_CFGR_SW_MASK<<device.RCC_CFGR_SW_POS |
		device.RCC_CFGR_HPRE_MASK<<device.RCC_CFGR_HPRE_POS |
		device.RCC_CFGR_PPRE1_MASK<<device.RCC_CFGR_PPRE1_POS |
		device.RCC_CFGR_PPRE2_MASK<<device.RCC_CFGR_PPRE2_POS
	s := q.sol
	q.rcc.CFGR.Modify(func(v uint32) uint32 {
		return v&^mask |
			s.source.sw()<<device.RCC_CFGR_SW_POS |
			s.hpre<<device.RCC_CFGR_HPRE_POS |
			s.ppre1<<device.RCC_CFGR_PPRE1_POS |
			s.ppre2<<device.RCC_CFGR_PPRE2_POS
	})
	return nil
}

func (q *sequencer) switchWait() error {
	want := q.sol.source.sw()
	return q.wait(fmt.Sprintf("switch to %v", q.sol.source), func() bool {
		return q.rcc.CFGR.Field(device.RCC_CFGR_SWS_MASK, device.RCC_CFGR_SWS_POS) == want
	}, ErrSwitchStuck)
}

func (q *sequencer) hsiOff() error {
	q.rcc.CR.ClearBits(device.RCC_CR_HSION)
	return nil
}
