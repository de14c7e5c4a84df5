package board

import (
	"fmt"
	"log"
	"time"

	"github.com/Jon-Bright/rccctl/gpio"
)

// Supply is a board's switched supply with its pins set up. It can be
// switched on and off any number of times.
type Supply struct {
	ctrl   *gpio.ErasedPin
	status *gpio.ErasedPin // nil without a status pin
	wait   time.Duration
}

// Supply sets up the pins of the board's supply and leaves it off. It
// returns nil for a board without one.
func (b Board) Supply(ports Ports) (*Supply, error) {
	pw := b.Power
	if pw == nil {
		return nil, nil
	}
	cp, cparts, err := ports.pin(pw.Ctrl)
	if err != nil {
		return nil, fmt.Errorf("couldn't get power control: %v", err)
	}
	var sm mode
	var sp floatingPin
	var sparts *gpio.Parts
	if pw.Status != "" {
		if sm, err = parseMode(pw.statusMode()); err != nil {
			return nil, err
		}
		if sp, sparts, err = ports.pin(pw.Status); err != nil {
			return nil, fmt.Errorf("couldn't get power status: %v", err)
		}
	}
	low := false
	s, err := configure(cp, cparts, mode{kind: pushPull}, false, &low)
	if err != nil {
		return nil, fmt.Errorf("couldn't set power control low: %v", err)
	}
	sup := &Supply{ctrl: s.(*gpio.ErasedPin), wait: pw.Wait}
	if sp != nil {
		s, err = configure(sp, sparts, sm, false, nil)
		if err != nil {
			return sup, fmt.Errorf("couldn't set up power status: %v", err)
		}
		sup.status = s.(*gpio.ErasedPin)
	}
	return sup, nil
}

// PowerOn sets up the board's supply and switches it on. The supply is
// returned even if it didn't become healthy, so it can be switched off.
func (b Board) PowerOn(ports Ports) (*Supply, error) {
	s, err := b.Supply(ports)
	if err != nil {
		return s, err
	}
	return s, s.On()
}

// On drives the control pin high and waits for the status pin, if there
// is one.
func (s *Supply) On() error {
	if s == nil {
		return nil
	}
	log.Printf("Power on")
	if err := s.ctrl.SetHigh(); err != nil {
		return fmt.Errorf("couldn't set power control high: %v", err)
	}
	if s.status == nil {
		return nil
	}
	start := time.Now()
	for {
		t := time.Now()
		if s.status.IsHigh() {
			log.Printf("Power stabilized after %v", t.Sub(start))
			return nil
		}
		if t.Sub(start) > s.wait {
			return fmt.Errorf("timed out waiting for power to be healthy, started %v, now %v", start, t)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Off drives the control pin low.
func (s *Supply) Off() error {
	if s == nil {
		return nil
	}
	log.Printf("Power off")
	if err := s.ctrl.SetLow(); err != nil {
		return fmt.Errorf("couldn't set power control low: %v", err)
	}
	return nil
}

// IsOn reports whether the control pin is driven high.
func (s *Supply) IsOn() bool {
	return s != nil && s.ctrl.IsHigh()
}
