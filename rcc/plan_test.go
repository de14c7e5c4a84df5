package rcc

import (
	"reflect"
	"testing"

	"github.com/Jon-Bright/rccctl/units"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		req  *Cfgr
		want []string
	}{
		{"HSI", NewRequest(),
			[]string{"latency", "switch", "switch-wait"}},
		{"HSI PLL", NewRequest().SysClk(32 * units.MHz).PCLK1(16 * units.MHz),
			[]string{"latency", "pll-config", "pll-on", "pll-lock", "switch", "switch-wait"}},
		{"HSE", NewRequest().HSE(8*units.MHz, HSEDiv1, BypassEnable),
			[]string{"latency", "hse-on", "hse-ready", "prediv", "switch", "switch-wait", "hsi-off"}},
		{"HSE PLL", NewRequest().HSE(8*units.MHz, HSEDiv1, BypassDisable).SysClk(72 * units.MHz).PCLK1(36 * units.MHz),
			[]string{"latency", "hse-on", "hse-ready", "prediv", "pll-config", "pll-on", "pll-lock", "switch", "switch-wait", "hsi-off"}},
	}
	for _, tc := range tests {
		got, err := tc.req.Plan()
		if err != nil {
			t.Errorf("%s: Plan failed: %v", tc.name, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got: %v, want: %v", tc.name, got, tc.want)
		}
	}
}

func TestPlanConstraint(t *testing.T) {
	if _, err := NewRequest().SysClk(48 * units.MHz).Plan(); err == nil {
		t.Errorf("Plan of an impossible request succeeded")
	}
}

func TestOrderRejectsCycles(t *testing.T) {
	defs := []stepDef{
		{"a", []string{"b"}, always, nil},
		{"b", []string{"a"}, always, nil},
	}
	if _, err := order(defs, Solution{}); err == nil {
		t.Errorf("cyclic steps ordered")
	}
}

func TestOrderSkipsAbsentDeps(t *testing.T) {
	never := func(Solution) bool { return false }
	defs := []stepDef{
		{"c", []string{"b"}, always, nil},
		{"b", nil, never, nil},
		{"a", []string{"c"}, always, nil},
	}
	got, err := order(defs, Solution{})
	if err != nil {
		t.Fatalf("order failed: %v", err)
	}
	var names []string
	for _, st := range got {
		names = append(names, st.name)
	}
	if !reflect.DeepEqual(names, []string{"c", "a"}) {
		t.Errorf("got: %v, want: [c a]", names)
	}
}
