package main

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/Jon-Bright/rccctl/board"
	"github.com/Jon-Bright/rccctl/rcc"
	"github.com/Jon-Bright/rccctl/sim"
	"github.com/Jon-Bright/rccctl/units"
)

func TestFreqFlag(t *testing.T) {
	var f freqFlag
	if f.String() != "" || f.Type() != "freq" {
		t.Errorf("unset flag got: %q %q", f.String(), f.Type())
	}
	if err := f.Set("36 MHz"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !f.set || f.f != 36*units.MHz || f.String() != "36MHz" {
		t.Errorf("flag got: %v %v", f.set, f.f)
	}
	if err := f.Set("lots"); err == nil {
		t.Errorf("Set(lots) succeeded")
	}
}

func TestParseRequest(t *testing.T) {
	c := rcc.NewRequest()
	if err := parseRequest("hse=16MHz div=2 bypass=true SYSCLK=48MHz pclk1=24MHz", c); err != nil {
		t.Fatalf("parseRequest failed: %v", err)
	}
	h, ok := c.External()
	if !ok || h.Speed() != 16*units.MHz || h.Divider() != 2 || !h.Bypass() {
		t.Errorf("HSE got: %v", h)
	}
	s, err := rcc.Solve(c)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if s.SysClk() != 48*units.MHz || s.PCLK1() != 24*units.MHz {
		t.Errorf("solution got: %v", s)
	}

	for _, bad := range []string{"sysclk", "foo=1", "div=x", "div=0", "hse=8MHz div=17", "div=200", "bypass=maybe", "hclk=fast", "hse=nan"} {
		if err := parseRequest(bad, rcc.NewRequest()); err == nil {
			t.Errorf("parseRequest(%q) succeeded", bad)
		}
	}
}

func TestHSEDivFlag(t *testing.T) {
	defer func(d uint8) { reqOpts.hseDiv = d }(reqOpts.hseDiv)
	tests := []struct {
		div uint8
		ok  bool
	}{
		{0, false},
		{1, true},
		{16, true},
		{17, false},
		{200, false},
	}
	for _, tc := range tests {
		reqOpts.hseDiv = tc.div
		err := rootCmd.PersistentPreRunE(rootCmd, nil)
		if (err == nil) != tc.ok {
			t.Errorf("--hse-div %d got: %v, want ok=%v", tc.div, err, tc.ok)
		}
	}
}

func simTarget(t *testing.T) *target {
	t.Helper()
	chip := sim.New(sim.Options{HSEReadyAfter: 3, PLLLockAfter: 5, SwitchAfter: 1})
	tg, err := newTarget(chip.Space(), chip)
	if err != nil {
		t.Fatalf("newTarget failed: %v", err)
	}
	return tg
}

func findBoard(t *testing.T, name string) board.Board {
	t.Helper()
	b, err := board.Builtin().Find(name)
	if err != nil {
		t.Fatalf("Find(%s) failed: %v", name, err)
	}
	return b
}

func TestApply(t *testing.T) {
	tg := simTarget(t)
	defer tg.Close()
	var out bytes.Buffer
	if err := apply(&out, tg, findBoard(t, "nucleo-f303re")); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	for _, want := range []string{"sysclk=64MHz", "pclk1=32MHz (/2)", "timers: APB1 64MHz", "PA5 (push-pull output)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if !tg.rcc.CFGR.Frozen() {
		t.Errorf("request not frozen")
	}
}

func TestServerCommands(t *testing.T) {
	tg := simTarget(t)
	defer tg.Close()
	s := newServer(nil, tg, findBoard(t, "stm32f3discovery"))
	tests := []struct {
		cmd, parms string
		want       string // prefix of the reply
		fail       bool
	}{
		{"BOARD", "", "stm32f3discovery", false},
		{"SOLVE", "", "sysclk=72MHz (PLL(HSE/1 x9))", false},
		{"SOLVE", "pclk1=72MHz", "", true},
		{"PLAN", "", "latency hse-on hse-ready prediv pll-config pll-on pll-lock switch switch-wait hsi-off", false},
		{"PLAN", "pclk1=72MHz", "", true},
		{"CLOCKS", "", "", true},
		{"PIN", "PE9", "", true},
		{"FREEZE", "", "sysclk=72MHz", false},
		{"FREEZE", "", "", true},
		{"CLOCKS", "", "sysclk=72MHz hclk=72MHz pclk1=36MHz (/2)", false},
		{"PIN", "PE9", "1", false},
		{"PIN", "pe9 low", "OK", false},
		{"PIN", "PE9", "0", false},
		{"PIN", "PA0 HIGH", "", true},
		{"PIN", "PA1", "", true},
		{"POWER", "ON", "OK", false},
		{"POWER", "sideways", "", true},
		{"JUMP", "", "", true},
	}
	for _, tc := range tests {
		got, err := s.handleCommand(tc.cmd, tc.parms)
		if tc.fail {
			if err == nil {
				t.Errorf("%s %s got: %q, want an error", tc.cmd, tc.parms, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %s failed: %v", tc.cmd, tc.parms, err)
			continue
		}
		if !strings.HasPrefix(got, tc.want) {
			t.Errorf("%s %s got: %q, want: %q", tc.cmd, tc.parms, got, tc.want)
		}
	}
}

func TestServerPowerCycle(t *testing.T) {
	tg := simTarget(t)
	defer tg.Close()
	s := newServer(nil, tg, findBoard(t, "f303-i2c-sensor"))
	for _, tc := range []struct{ cmd, parms, want string }{
		{"FREEZE", "", "sysclk=48MHz"},
		{"POWER", "", "0"},
		{"POWER", "ON", "OK"},
		{"POWER", "", "1"},
		{"POWER", "OFF", "OK"},
		{"POWER", "", "0"},
		{"POWER", "ON", "OK"},
		{"POWER", "on", "OK"},
		{"POWER", "", "1"},
	} {
		got, err := s.handleCommand(tc.cmd, tc.parms)
		if err != nil {
			t.Fatalf("%s %s failed: %v", tc.cmd, tc.parms, err)
		}
		if !strings.HasPrefix(got, tc.want) {
			t.Errorf("%s %s got: %q, want: %q", tc.cmd, tc.parms, got, tc.want)
		}
	}
}

func TestServerConnection(t *testing.T) {
	tg := simTarget(t)
	defer tg.Close()
	s := newServer(nil, tg, findBoard(t, "hsi"))
	go s.runCommands()
	defer close(s.c)

	client, server := net.Pipe()
	defer client.Close()
	done := make(chan struct{})
	go func() {
		s.handleConnection(server)
		close(done)
	}()

	r := bufio.NewReader(client)
	for _, tc := range []struct{ line, want string }{
		{"board", "hsi"},
		{"solve pclk1=100MHz", "ERR: "},
		{"freeze", "sysclk=8MHz"},
	} {
		if _, err := client.Write([]byte(tc.line + "\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !strings.HasPrefix(got, tc.want) {
			t.Errorf("%s got: %q, want prefix %q", tc.line, got, tc.want)
		}
	}
	if _, err := client.Write([]byte("QUIT\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	<-done
}
