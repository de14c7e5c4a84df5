// Package board reads board descriptions: the clock request a board wants
// and how its pins are set up once the clocks run.
package board

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/Jon-Bright/rccctl/device"
	"github.com/Jon-Bright/rccctl/gpio"
	"github.com/Jon-Bright/rccctl/rcc"
	"github.com/Jon-Bright/rccctl/units"
)

//go:embed boards.yaml
var rawBoards []byte

var builtin Boards

var ErrUnknownBoard = errors.New("unknown board")

func init() {
	var err error
	builtin, err = Parse(rawBoards)
	if err != nil {
		panic(fmt.Sprintf("board: built-in boards.yaml: %v", err))
	}
}

// Builtin returns the boards compiled into the binary.
func Builtin() Boards {
	return builtin
}

type Boards map[string]Board

type Board struct {
	Name        string      `yaml:"-"`
	Description string      `yaml:"description"`
	Clock       Clock       `yaml:"clock"`
	Pins        []PinConfig `yaml:"pins"`
	Power       *Power      `yaml:"power"`
}

type Clock struct {
	HSE    *HSE  `yaml:"hse"`
	SysClk *Freq `yaml:"sysclk"`
	HCLK   *Freq `yaml:"hclk"`
	PCLK1  *Freq `yaml:"pclk1"`
	PCLK2  *Freq `yaml:"pclk2"`
}

type HSE struct {
	Freq    Freq  `yaml:"freq"`
	Divider uint8 `yaml:"divider"`
	Bypass  bool  `yaml:"bypass"`
}

// PinConfig sets up one pin. Mode is one of floating-input, pull-up-input,
// pull-down-input, push-pull-output, open-drain-output or af0 to af15.
// Level is the initial level of an output.
type PinConfig struct {
	Pin    string `yaml:"pin"`
	Mode   string `yaml:"mode"`
	Level  string `yaml:"level"`
	PullUp bool   `yaml:"pull-up"`
}

// Power describes a switched supply: ctrl is driven high to turn it on,
// then status has to read high within wait.
type Power struct {
	Ctrl       string        `yaml:"ctrl"`
	Status     string        `yaml:"status"`
	StatusPull string        `yaml:"status-pull"`
	Wait       time.Duration `yaml:"wait"`
}

// Freq is a frequency written as "72MHz", "500kHz" or a number of Hz.
type Freq units.Hertz

func (f *Freq) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	h, err := units.Parse(s)
	if err != nil {
		return fmt.Errorf("line %d: %v", value.Line, err)
	}
	*f = Freq(h)
	return nil
}

func (f Freq) Hertz() units.Hertz {
	return units.Hertz(f)
}

// Parse decodes a YAML board file and checks every board in it.
func Parse(data []byte) (Boards, error) {
	var doc struct {
		Boards Boards `yaml:"boards"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("couldn't decode boards: %v", err)
	}
	// Names are case-insensitive; Find looks them up in lower case.
	bs := Boards{}
	for name, b := range doc.Boards {
		key := strings.ToLower(name)
		if _, dup := bs[key]; dup {
			return nil, fmt.Errorf("board %s defined twice", key)
		}
		b.Name = key
		if err := b.check(); err != nil {
			return nil, fmt.Errorf("board %s: %v", name, err)
		}
		bs[key] = b
	}
	return bs, nil
}

// Load reads a YAML board file.
func Load(r io.Reader) (Boards, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("couldn't read boards: %v", err)
	}
	return Parse(data)
}

// Names returns the board names in order.
func (bs Boards) Names() []string {
	names := maps.Keys(bs)
	slices.Sort(names)
	return names
}

func (bs Boards) Find(name string) (Board, error) {
	b, ok := bs[strings.ToLower(name)]
	if !ok {
		return Board{}, fmt.Errorf("%w %q", ErrUnknownBoard, name)
	}
	return b, nil
}

func (b *Board) check() error {
	if h := b.Clock.HSE; h != nil {
		if h.Divider == 0 {
			h.Divider = 1
		}
		if !rcc.HSEDivider(h.Divider).Valid() {
			return fmt.Errorf("HSE divider %d out of range 1..16", h.Divider)
		}
	}
	seen := map[string]bool{}
	claim := func(name string) error {
		port, i, err := ParsePin(name)
		if err != nil {
			return err
		}
		if !gpio.Available(port, i) {
			return fmt.Errorf("pin %s isn't available", name)
		}
		key := pinKey(port, i)
		if seen[key] {
			return fmt.Errorf("pin %s used twice", name)
		}
		seen[key] = true
		return nil
	}
	for _, pc := range b.Pins {
		if err := claim(pc.Pin); err != nil {
			return err
		}
		m, err := parseMode(pc.Mode)
		if err != nil {
			return fmt.Errorf("pin %s: %v", pc.Pin, err)
		}
		if pc.Level != "" && !m.output() {
			return fmt.Errorf("pin %s: level set on a %s pin", pc.Pin, pc.Mode)
		}
		if _, err := parseLevel(pc.Level); err != nil {
			return fmt.Errorf("pin %s: %v", pc.Pin, err)
		}
		if pc.PullUp && m.kind != openDrain {
			return fmt.Errorf("pin %s: pull-up is only for open-drain outputs", pc.Pin)
		}
	}
	if p := b.Power; p != nil {
		if err := claim(p.Ctrl); err != nil {
			return fmt.Errorf("power control: %v", err)
		}
		if p.Status != "" {
			if err := claim(p.Status); err != nil {
				return fmt.Errorf("power status: %v", err)
			}
			if _, err := parseMode(p.statusMode()); err != nil {
				return fmt.Errorf("power status: %v", err)
			}
		}
	}
	return nil
}

func (p *Power) statusMode() string {
	switch p.StatusPull {
	case "", "none":
		return "floating-input"
	}
	return "pull-" + p.StatusPull + "-input"
}

// Request applies the board's clock settings to c and returns it.
func (b Board) Request(c *rcc.Cfgr) *rcc.Cfgr {
	k := b.Clock
	if k.HSE != nil {
		c.HSE(k.HSE.Freq.Hertz(), rcc.HSEDivider(k.HSE.Divider), rcc.HSEBypass(k.HSE.Bypass))
	}
	if k.SysClk != nil {
		c.SysClk(k.SysClk.Hertz())
	}
	if k.HCLK != nil {
		c.HCLK(k.HCLK.Hertz())
	}
	if k.PCLK1 != nil {
		c.PCLK1(k.PCLK1.Hertz())
	}
	if k.PCLK2 != nil {
		c.PCLK2(k.PCLK2.Hertz())
	}
	return c
}

// Ports returns the GPIO ports the board's pins are on, in order.
func (b Board) Ports() []device.Port {
	var ports []device.Port
	add := func(name string) {
		if port, _, err := ParsePin(name); err == nil {
			ports = append(ports, port)
		}
	}
	for _, pc := range b.Pins {
		add(pc.Pin)
	}
	if p := b.Power; p != nil {
		add(p.Ctrl)
		if p.Status != "" {
			add(p.Status)
		}
	}
	slices.Sort(ports)
	return slices.Compact(ports)
}

// ParsePin splits a pin name such as "PE9" into port and index.
func ParsePin(name string) (device.Port, uint, error) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if len(s) < 3 || s[0] != 'P' {
		return 0, 0, fmt.Errorf("bad pin name %q", name)
	}
	port, err := device.ParsePort(s[:2])
	if err != nil {
		return 0, 0, fmt.Errorf("bad pin name %q: %v", name, err)
	}
	i, err := strconv.ParseUint(s[2:], 10, 8)
	if err != nil || i >= gpio.NUM_PINS {
		return 0, 0, fmt.Errorf("bad pin number in %q", name)
	}
	return port, uint(i), nil
}

func pinKey(port device.Port, i uint) string {
	return fmt.Sprintf("P%c%d", port.Letter(), i)
}
