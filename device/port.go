package device

import (
	"fmt"
	"strings"
)

type Port uint8

const (
	PortA Port = iota
	PortB
	PortC
	PortD
	PortE
	PortF
	NumPorts = 6
)

func (p Port) String() string {
	if p >= NumPorts {
		return fmt.Sprintf("GPIO?%d", uint8(p))
	}
	return "GPIO" + string(rune('A'+p))
}

// Letter returns the port letter used in pin names, e.g. 'A' for PA5.
func (p Port) Letter() byte {
	return 'A' + byte(p)
}

func (p Port) Base() uint32 {
	return GPIO_BASE + uint32(p)*GPIO_SIZE
}

// EnableBit is the port's bit in both RCC_AHBENR and RCC_AHBRSTR.
func (p Port) EnableBit() uint32 {
	return RCC_AHBENR_IOPAEN << p
}

// ParsePort accepts "A", "PA", "GPIOA" and lower-case variants.
func ParsePort(s string) (Port, error) {
	u := strings.ToUpper(s)
	u = strings.TrimPrefix(u, "GPIO")
	u = strings.TrimPrefix(u, "P")
	if len(u) != 1 || u[0] < 'A' || u[0] >= 'A'+NumPorts {
		return 0, fmt.Errorf("unknown port %q", s)
	}
	return Port(u[0] - 'A'), nil
}
