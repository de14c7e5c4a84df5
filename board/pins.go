package board

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/gpio"
	"github.com/Jon-Bright/rccctl/rcc"
)

type modeKind int

const (
	floatingInput modeKind = iota
	pullUpInput
	pullDownInput
	pushPull
	openDrain
	alternate
)

type mode struct {
	kind modeKind
	af   int
}

func (m mode) output() bool {
	return m.kind == pushPull || m.kind == openDrain
}

func parseMode(s string) (mode, error) {
	switch strings.ToLower(s) {
	case "", "floating-input":
		return mode{kind: floatingInput}, nil
	case "pull-up-input":
		return mode{kind: pullUpInput}, nil
	case "pull-down-input":
		return mode{kind: pullDownInput}, nil
	case "push-pull-output":
		return mode{kind: pushPull}, nil
	case "open-drain-output":
		return mode{kind: openDrain}, nil
	}
	if n, ok := strings.CutPrefix(strings.ToLower(s), "af"); ok {
		af, err := strconv.Atoi(n)
		if err == nil && af >= 0 && af <= 15 {
			return mode{kind: alternate, af: af}, nil
		}
	}
	return mode{}, fmt.Errorf("unknown pin mode %q", s)
}

// parseLevel returns nil for no level.
func parseLevel(s string) (*bool, error) {
	var high bool
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "high", "1":
		high = true
	case "low", "0":
		high = false
	default:
		return nil, fmt.Errorf("bad level %q", s)
	}
	return &high, nil
}

type floatingPin = *gpio.Pin[gpio.Input[gpio.Floating]]

func intoAF[A gpio.AltMode](p floatingPin, parts *gpio.Parts) fmt.Stringer {
	return gpio.IntoAlternate[A](p, parts.MODER, parts.AFR(p.Index()))
}

var alternates = [16]func(floatingPin, *gpio.Parts) fmt.Stringer{
	intoAF[gpio.AF0], intoAF[gpio.AF1], intoAF[gpio.AF2], intoAF[gpio.AF3],
	intoAF[gpio.AF4], intoAF[gpio.AF5], intoAF[gpio.AF6], intoAF[gpio.AF7],
	intoAF[gpio.AF8], intoAF[gpio.AF9], intoAF[gpio.AF10], intoAF[gpio.AF11],
	intoAF[gpio.AF12], intoAF[gpio.AF13], intoAF[gpio.AF14], intoAF[gpio.AF15],
}

// Ports maps each split GPIO port to its parts.
type Ports map[device.Port]*gpio.Parts

// SplitPorts splits the GPIO ports the board uses.
func (b Board) SplitPorts(p *device.Peripherals, ahb *rcc.AHB) (Ports, error) {
	ps := Ports{}
	for _, port := range b.Ports() {
		parts, err := gpio.Split(p.Port(port), ahb)
		if err != nil {
			return nil, fmt.Errorf("couldn't split %v: %v", port, err)
		}
		ps[port] = parts
	}
	return ps, nil
}

func (ps Ports) pin(name string) (floatingPin, *gpio.Parts, error) {
	port, i, err := ParsePin(name)
	if err != nil {
		return nil, nil, err
	}
	parts, ok := ps[port]
	if !ok {
		return nil, nil, fmt.Errorf("port %v of %s isn't split", port, name)
	}
	p := parts.Pins[i]
	if p == nil {
		return nil, nil, fmt.Errorf("pin %s isn't available", name)
	}
	return p, parts, nil
}

// configure puts a pin into mode m. Inputs and outputs come back erased,
// alternate function pins as their typed handle.
func configure(p floatingPin, parts *gpio.Parts, m mode, pullUp bool, level *bool) (fmt.Stringer, error) {
	var e *gpio.ErasedPin
	switch m.kind {
	case floatingInput:
		e = gpio.DowngradeInput(p)
	case pullUpInput:
		e = gpio.DowngradeInput(p.IntoPullUpInput(parts.MODER, parts.PUPDR))
	case pullDownInput:
		e = gpio.DowngradeInput(p.IntoPullDownInput(parts.MODER, parts.PUPDR))
	case pushPull:
		e = gpio.DowngradeOutput(p.IntoPushPullOutput(parts.MODER, parts.OTYPER))
	case openDrain:
		o := p.IntoOpenDrainOutput(parts.MODER, parts.OTYPER)
		gpio.InternalPullUp(o, parts.PUPDR, pullUp)
		e = gpio.DowngradeOutput(o)
	case alternate:
		return alternates[m.af](p, parts), nil
	}
	if level != nil {
		set := e.SetLow
		if *level {
			set = e.SetHigh
		}
		if err := set(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ApplyPins sets up the board's pins. ports must hold every port listed by
// Ports. It returns the configured pins in the order they're listed.
func (b Board) ApplyPins(ports Ports) ([]fmt.Stringer, error) {
	var pins []fmt.Stringer
	for _, pc := range b.Pins {
		m, err := parseMode(pc.Mode)
		if err != nil {
			return pins, fmt.Errorf("pin %s: %v", pc.Pin, err)
		}
		level, err := parseLevel(pc.Level)
		if err != nil {
			return pins, fmt.Errorf("pin %s: %v", pc.Pin, err)
		}
		p, parts, err := ports.pin(pc.Pin)
		if err != nil {
			return pins, err
		}
		s, err := configure(p, parts, m, pc.PullUp, level)
		if err != nil {
			return pins, fmt.Errorf("couldn't configure %s: %v", pc.Pin, err)
		}
		log.Printf("Pin %v\n", s)
		pins = append(pins, s)
	}
	return pins, nil
}
