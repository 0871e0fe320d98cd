// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/headerservice/lib/clock"
)

// Fault codes reported by the header service. They match the codes
// operators already filter on in the facility alarm system.
const (
	// FaultTimeout: an image session expired before its end signal.
	FaultTimeout = 3010

	// FaultWrite: a header could not be serialized or written.
	FaultWrite = 3020

	// FaultAnnounce: a written header could not be uploaded or
	// announced.
	FaultAnnounce = 3030

	// FaultServe: the web-mode file server stopped. This one is
	// component-level and puts the controller in Fault.
	FaultServe = 3040
)

// OperatingState is the capability the session manager consults before
// acting on a signal.
type OperatingState interface {
	// Active reports whether signals should be processed.
	Active() bool

	// OnDeactivate registers fn to run each time the component leaves
	// the active state. Hooks run synchronously, in registration order.
	OnDeactivate(fn func())
}

// FaultReporter receives image-level failures. Reporting a fault never
// stops the process or changes the summary state.
type FaultReporter interface {
	ReportFault(code int, report string)
}

// State is a summary state.
type State string

const (
	Standby  State = "standby"
	Disabled State = "disabled"
	Enabled  State = "enabled"
	Fault    State = "fault"
)

// ParseState accepts a summary state name case-insensitively.
func ParseState(s string) (State, error) {
	switch state := State(strings.ToLower(s)); state {
	case Standby, Disabled, Enabled, Fault:
		return state, nil
	default:
		return "", fmt.Errorf("unknown summary state %q (want standby, disabled, enabled, or fault)", s)
	}
}

// Command is an operator request to change the summary state.
type Command string

const (
	CommandStart   Command = "start"
	CommandEnable  Command = "enable"
	CommandDisable Command = "disable"
	CommandStandby Command = "standby"
)

// ParseCommand accepts a command name case-insensitively.
func ParseCommand(s string) (Command, error) {
	switch command := Command(strings.ToLower(strings.TrimSpace(s))); command {
	case CommandStart, CommandEnable, CommandDisable, CommandStandby:
		return command, nil
	default:
		return "", fmt.Errorf("unknown command %q (want start, enable, disable, or standby)", s)
	}
}

// FaultRecord is one fault report as retained by the Controller.
type FaultRecord struct {
	Code   int
	Report string
	At     time.Time
}

// Controller is the in-process summary-state machine:
//
//	standby -> disabled -> enabled
//	enabled -> disabled -> standby
//	fault   -> standby
//
// Only Enabled is active. Leaving Enabled runs the deactivation hooks.
type Controller struct {
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	hooks       []func()
	lastFault   *FaultRecord
	faultCounts map[int]int
}

// NewController returns a Controller in the initial state.
func NewController(initial State, clk clock.Clock, logger *slog.Logger) *Controller {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		clock:       clk,
		logger:      logger,
		state:       initial,
		faultCounts: make(map[int]int),
	}
}

// State returns the current summary state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the controller is Enabled.
func (c *Controller) Active() bool {
	return c.State() == Enabled
}

// OnDeactivate implements [OperatingState].
func (c *Controller) OnDeactivate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Start moves standby to disabled.
func (c *Controller) Start() error { return c.transition(Disabled) }

// Enable moves disabled to enabled.
func (c *Controller) Enable() error { return c.transition(Enabled) }

// Disable moves enabled to disabled.
func (c *Controller) Disable() error { return c.transition(Disabled) }

// Standby moves disabled or fault to standby.
func (c *Controller) Standby() error { return c.transition(Standby) }

// GoToFault moves any state to fault. Unlike [Controller.ReportFault]
// this is a component-level failure and deactivates the service.
func (c *Controller) GoToFault(code int, report string) {
	c.record(code, report)
	if err := c.transition(Fault); err != nil {
		c.logger.Error("entering fault state", "error", err)
	}
}

// ReportFault implements [FaultReporter]. The report is logged and
// retained; the summary state is unchanged.
func (c *Controller) ReportFault(code int, report string) {
	c.record(code, report)
	c.logger.Error("image fault", "code", code, "report", report)
}

// Apply performs the transition command names.
func (c *Controller) Apply(command Command) error {
	switch command {
	case CommandStart:
		return c.Start()
	case CommandEnable:
		return c.Enable()
	case CommandDisable:
		return c.Disable()
	case CommandStandby:
		return c.Standby()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// Report is the published view of the controller: the summary state and
// the most recent fault.
type Report struct {
	State       State  `json:"summaryState"`
	ErrorCode   int    `json:"errorCode,omitempty"`
	ErrorReport string `json:"errorReport,omitempty"`
}

// Report returns the current state and last fault.
func (c *Controller) Report() Report {
	report := Report{State: c.State()}
	if fault, ok := c.LastFault(); ok {
		report.ErrorCode = fault.Code
		report.ErrorReport = fault.Report
	}
	return report
}

// LastFault returns the most recent fault report, if any.
func (c *Controller) LastFault() (FaultRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFault == nil {
		return FaultRecord{}, false
	}
	return *c.lastFault, true
}

// FaultCount returns how many faults with code have been reported.
func (c *Controller) FaultCount(code int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faultCounts[code]
}

func (c *Controller) record(code int, report string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFault = &FaultRecord{Code: code, Report: report, At: c.clock.Now()}
	c.faultCounts[code]++
}

func (c *Controller) transition(to State) error {
	c.mu.Lock()
	from := c.state
	if err := validateTransition(from, to); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = to
	var hooks []func()
	if from == Enabled && to != Enabled {
		hooks = append(hooks, c.hooks...)
	}
	c.mu.Unlock()

	c.logger.Info("summary state changed", "from", from, "to", to)
	// Hooks may call back into the controller.
	for _, hook := range hooks {
		hook()
	}
	return nil
}

func validateTransition(from, to State) error {
	if to == Fault {
		return nil
	}
	switch from {
	case Standby:
		if to == Disabled {
			return nil
		}
	case Disabled:
		if to == Enabled || to == Standby {
			return nil
		}
	case Enabled:
		if to == Disabled {
			return nil
		}
	case Fault:
		if to == Standby {
			return nil
		}
	default:
		return fmt.Errorf("unknown current state: %s", from)
	}
	return fmt.Errorf("invalid state transition: %s → %s", from, to)
}
