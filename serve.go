package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jon-Bright/rccctl/board"
	"github.com/Jon-Bright/rccctl/gpio"
	"github.com/Jon-Bright/rccctl/rcc"
	"github.com/Jon-Bright/rccctl/units"
)

var (
	serveOpts = struct {
		port int
	}{}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve a line protocol for solving clock requests, freezing them and driving pins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := selectedBoard()
			if err != nil {
				return err
			}
			t, err := openTarget()
			if err != nil {
				return err
			}
			defer t.Close()
			s, err := NewServer(serveOpts.port, t, b)
			if err != nil {
				return fmt.Errorf("couldn't create server: %v", err)
			}
			go s.runCommands()
			s.handleConnections()
			return nil
		},
	}
)

func init() {
	serveCmd.Flags().IntVar(&serveOpts.port, "port", 24601, "The port that the server should listen to")
}

type command struct {
	cmd   string
	parms string
	reply chan string
}

// Server owns the target. Connections hand their commands to runCommands,
// which executes them one at a time.
type Server struct {
	t      *target
	b      board.Board
	l      net.Listener
	c      chan command
	clocks *rcc.Clocks
	pins   map[string]*gpio.ErasedPin
	ports  board.Ports
	supply *board.Supply
}

func NewServer(port int, t *target, b board.Board) (*Server, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	log.Printf("Listening on port %d", port)
	return newServer(l, t, b), nil
}

func newServer(l net.Listener, t *target, b board.Board) *Server {
	return &Server{t: t, b: b, l: l, c: make(chan command), pins: map[string]*gpio.ErasedPin{}}
}

// parseRequest applies key=value settings such as "hse=8MHz div=2
// sysclk=72MHz" to c.
func parseRequest(parms string, c *rcc.Cfgr) error {
	var hse units.Hertz
	div := uint64(1)
	bypass := false
	for _, kv := range strings.Fields(parms) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got '%s'", kv)
		}
		k = strings.ToLower(k)
		switch k {
		case "div":
			d, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return fmt.Errorf("error parsing div: %v", err)
			}
			if !rcc.HSEDivider(d).Valid() {
				return fmt.Errorf("div %d out of range 1..16", d)
			}
			div = d
		case "bypass":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("error parsing bypass: %v", err)
			}
			bypass = b
		case "hse", "sysclk", "hclk", "pclk1", "pclk2":
			f, err := units.Parse(v)
			if err != nil {
				return fmt.Errorf("error parsing %s: %v", k, err)
			}
			switch k {
			case "hse":
				hse = f
			case "sysclk":
				c.SysClk(f)
			case "hclk":
				c.HCLK(f)
			case "pclk1":
				c.PCLK1(f)
			case "pclk2":
				c.PCLK2(f)
			}
		default:
			return fmt.Errorf("unknown setting: %s", k)
		}
	}
	if hse != 0 {
		c.HSE(hse, rcc.HSEDivider(div), rcc.HSEBypass(bypass))
	}
	return nil
}

// scratch returns a request that isn't bound to the hardware, filled from
// the board and then parms.
func (s *Server) scratch(parms string) (*rcc.Cfgr, error) {
	c := s.b.Request(rcc.NewRequest())
	if err := parseRequest(parms, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Server) freeze(parms string) (string, error) {
	c := s.b.Request(s.t.rcc.CFGR)
	if err := parseRequest(parms, c); err != nil {
		return "", err
	}
	clk, err := c.ReadyTimeout(rootOpts.timeout).Freeze(s.t.flash.ACR)
	if err != nil {
		return "", err
	}
	s.clocks = &clk
	s.ports, err = s.b.SplitPorts(s.t.dev, s.t.rcc.AHB)
	if err != nil {
		return "", err
	}
	pins, err := s.b.ApplyPins(s.ports)
	if err != nil {
		return "", err
	}
	for _, p := range pins {
		if e, ok := p.(*gpio.ErasedPin); ok {
			s.pins[fmt.Sprintf("P%c%d", e.Port().Letter(), e.Index())] = e
		}
	}
	s.supply, err = s.b.Supply(s.ports)
	if err != nil {
		return "", err
	}
	return clk.String(), nil
}

func (s *Server) pin(parms string) (string, error) {
	t := strings.Fields(strings.ToUpper(parms))
	if len(t) == 0 {
		return "", fmt.Errorf("no pin given")
	}
	p, ok := s.pins[t[0]]
	if !ok {
		return "", fmt.Errorf("no configured pin %s", t[0])
	}
	if len(t) == 1 {
		if p.IsHigh() {
			return "1", nil
		}
		return "0", nil
	}
	var err error
	switch t[1] {
	case "HIGH", "1":
		err = p.SetHigh()
	case "LOW", "0":
		err = p.SetLow()
	default:
		return "", fmt.Errorf("unknown level: %s", t[1])
	}
	if err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *Server) handleCommand(cmd, parms string) (string, error) {
	switch cmd {
	case "SOLVE":
		c, err := s.scratch(parms)
		if err != nil {
			return "", fmt.Errorf("error parsing request: %v", err)
		}
		sol, err := rcc.Solve(c)
		if err != nil {
			return "", err
		}
		return sol.String(), nil
	case "PLAN":
		c, err := s.scratch(parms)
		if err != nil {
			return "", fmt.Errorf("error parsing request: %v", err)
		}
		steps, err := c.Plan()
		if err != nil {
			return "", err
		}
		return strings.Join(steps, " "), nil
	case "FREEZE":
		return s.freeze(parms)
	case "CLOCKS":
		if s.clocks == nil {
			return "", fmt.Errorf("clocks not frozen")
		}
		return s.clocks.String(), nil
	case "PIN":
		return s.pin(parms)
	case "POWER":
		if s.ports == nil {
			return "", fmt.Errorf("pins not set up, FREEZE first")
		}
		switch strings.ToUpper(parms) {
		case "":
			if s.supply.IsOn() {
				return "1", nil
			}
			return "0", nil
		case "ON":
			if err := s.supply.On(); err != nil {
				return "", err
			}
		case "OFF":
			if err := s.supply.Off(); err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("expected ON or OFF, got '%s'", parms)
		}
		return "OK", nil
	case "BOARD":
		return boardName(s.b), nil
	}
	return "", fmt.Errorf("unknown command: %s", cmd)
}

func (s *Server) runCommands() {
	for c := range s.c {
		r, err := s.handleCommand(c.cmd, c.parms)
		if err != nil {
			es := fmt.Sprintf("Error running %s: %v", c.cmd, err)
			log.Print(es)
			r = "ERR: " + es
		}
		c.reply <- r
	}
}

func (s *Server) handleConnection(c net.Conn) {
	log.Printf("Handling connection from %v", c.RemoteAddr())
	defer c.Close()
	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)
	reply := make(chan string)
	for {
		l, err := r.ReadString('\n')
		if err == io.EOF {
			log.Printf("EOF for connection %v", c.RemoteAddr())
			return
		}
		if err != nil {
			log.Printf("Error reading string for connection %v: %v", c.RemoteAddr(), err)
			return
		}
		l = strings.TrimSpace(l)
		log.Printf("Got line '%s'", l)
		t := strings.SplitN(l, " ", 2)
		cmd := strings.ToUpper(t[0])
		parms := ""
		if len(t) > 1 {
			parms = t[1]
		}
		if cmd == "QUIT" {
			return
		}
		s.c <- command{cmd, parms, reply}
		w.WriteString(<-reply + "\n")
		err = w.Flush()
		if err != nil {
			log.Printf("error writing reply: %v", err)
			return
		}
	}
}

func (s *Server) handleConnections() {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			log.Printf("Error accepting connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}
