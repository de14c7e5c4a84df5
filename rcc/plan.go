package rcc

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// stepDef is one register operation of the activation sequence. A step
// runs after every step named in deps that is part of the same plan.
type stepDef struct {
	name string
	deps []string
	when func(Solution) bool
	run  func(*sequencer) error
}

func always(Solution) bool    { return true }
func usesHSE(s Solution) bool { return s.hse != nil }
func usesPLL(s Solution) bool { return s.source == SourcePLL }

var activation = []stepDef{
	{"latency", nil, always, (*sequencer).setLatency},
	{"hse-on", []string{"latency"}, usesHSE, (*sequencer).hseOn},
	{"hse-ready", []string{"hse-on"}, usesHSE, (*sequencer).hseReady},
	{"prediv", []string{"hse-ready"}, usesHSE, (*sequencer).prediv},
	{"pll-config", []string{"latency", "prediv"}, usesPLL, (*sequencer).pllConfig},
	{"pll-on", []string{"pll-config"}, usesPLL, (*sequencer).pllOn},
	{"pll-lock", []string{"pll-on"}, usesPLL, (*sequencer).pllLock},
	{"switch", []string{"latency", "hse-ready", "prediv", "pll-lock"}, always, (*sequencer).switchSource},
	{"switch-wait", []string{"switch"}, always, (*sequencer).switchWait},
	{"hsi-off", []string{"switch-wait"}, usesHSE, (*sequencer).hsiOff},
}

// order returns the steps of defs that apply to s, sorted so that every
// step follows its dependencies. Independent steps keep their order in
// defs.
func order(defs []stepDef, s Solution) ([]stepDef, error) {
	g := simple.NewDirectedGraph()
	ids := map[string]int64{}
	for i, d := range defs {
		if d.when(s) {
			g.AddNode(simple.Node(i))
			ids[d.name] = int64(i)
		}
	}
	for i, d := range defs {
		if _, ok := ids[d.name]; !ok {
			continue
		}
		for _, dep := range d.deps {
			if j, ok := ids[dep]; ok {
				g.SetEdge(g.NewEdge(simple.Node(j), simple.Node(i)))
			}
		}
	}
	sorted, err := topo.SortStabilized(g, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't order activation steps: %v", err)
	}
	out := make([]stepDef, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, defs[n.ID()])
	}
	return out, nil
}

// Plan solves the request and returns the names of the steps Freeze would
// perform, in order.
func (c *Cfgr) Plan() ([]string, error) {
	s, err := Solve(c)
	if err != nil {
		return nil, err
	}
	steps, err := order(activation, s)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = st.name
	}
	return names, nil
}
