package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/evonomics/market"
	"github.com/pthm-cable/evonomics/world"
)

// ErrInvalidParam is returned for unknown parameters and out-of-range values.
var ErrInvalidParam = errors.New("invalid parameter")

// Param names a live-tunable rate.
type Param uint8

const (
	ParamSpawnChance Param = iota
	ParamMutationChance
	ParamGeneralFoodChance
	ParamCornucopiaBounty
	ParamCornucopiaChance
)

var paramNames = [...]string{
	ParamSpawnChance:       "spawn_chance",
	ParamMutationChance:    "mutation_chance",
	ParamGeneralFoodChance: "general_food_chance",
	ParamCornucopiaBounty:  "cornucopia_bounty",
	ParamCornucopiaChance:  "cornucopia_chance",
}

func (p Param) String() string {
	if int(p) < len(paramNames) {
		return paramNames[p]
	}
	return fmt.Sprintf("param(%d)", uint8(p))
}

// ParseParam maps a config-style name to a Param.
func ParseParam(name string) (Param, error) {
	for i, n := range paramNames {
		if n == name {
			return Param(i), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, ErrInvalidParam)
}

// Command is an instruction for the driver.
type Command interface {
	command()
}

// TickCommand advances the simulation Count ticks and publishes one view.
type TickCommand struct {
	Count int
}

// SetParam replaces one rate between ticks.
type SetParam struct {
	Param Param
	Value float64
}

func (TickCommand) command() {}
func (SetParam) command()    {}

// apply returns r with the parameter replaced.
func (c SetParam) apply(r world.Rates) (world.Rates, error) {
	if c.Param == ParamCornucopiaBounty {
		v := c.Value
		if math.IsNaN(v) || v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
			return r, fmt.Errorf("%s = %v: %w", c.Param, v, ErrInvalidParam)
		}
		r.CornucopiaBounty = uint32(v)
		return r, nil
	}

	if err := world.CheckProbability(c.Value); err != nil {
		return r, fmt.Errorf("%s: %w: %w", c.Param, ErrInvalidParam, err)
	}
	switch c.Param {
	case ParamSpawnChance:
		r.SpawnChance = c.Value
	case ParamMutationChance:
		r.MutationChance = c.Value
	case ParamGeneralFoodChance:
		r.GeneralFoodChance = c.Value
	case ParamCornucopiaChance:
		r.CornucopiaChance = c.Value
	default:
		return r, fmt.Errorf("%s: %w", c.Param, ErrInvalidParam)
	}
	return r, nil
}

// Output is published by the driver.
type Output interface {
	output()
}

// ViewOutput carries the grid after a TickCommand.
type ViewOutput struct {
	View View
}

// MarketOutput carries one clearing round.
type MarketOutput struct {
	Stats market.Stats
}

func (ViewOutput) output()   {}
func (MarketOutput) output() {}

// Driver owns a Simulation on its own goroutine. Front ends talk to it through
// a bounded command queue and a bounded output queue.
type Driver struct {
	sim *Simulation
	in  chan Command
	out chan Output
}

// NewDriver creates a driver with the given queue capacities.
func NewDriver(sim *Simulation, inbound, outbound int) *Driver {
	return &Driver{
		sim: sim,
		in:  make(chan Command, max(inbound, 1)),
		out: make(chan Output, max(outbound, 1)),
	}
}

// Send queues a command without blocking. It returns false when the queue is
// full and the command was dropped.
func (d *Driver) Send(cmd Command) bool {
	select {
	case d.in <- cmd:
		return true
	default:
		return false
	}
}

// Outputs returns the output queue. It is closed when Run returns.
func (d *Driver) Outputs() <-chan Output { return d.out }

// Run processes commands until ctx is done or the simulation fails. A
// conservation failure is returned and nothing more is published.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-d.in:
			if err := d.handle(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) handle(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case TickCommand:
		if c.Count < 1 {
			slog.Warn("ignoring tick command", "count", c.Count)
			return nil
		}
		for range c.Count {
			ms, err := d.sim.Tick()
			if err != nil {
				slog.Error("simulation stopped", "tick", d.sim.CurrentTick(), "error", err)
				return err
			}
			if err := d.publish(ctx, MarketOutput{Stats: ms}); err != nil {
				return err
			}
		}
		d.sim.RecordFrame()
		return d.publish(ctx, ViewOutput{View: d.sim.View(c.Count)})

	case SetParam:
		rates, err := c.apply(d.sim.Rates())
		if err == nil {
			err = d.sim.SetRates(rates)
		}
		if err != nil {
			slog.Warn("ignoring command", "param", c.Param.String(), "value", c.Value, "error", err)
			return nil
		}
		slog.Debug("parameter set", "param", c.Param.String(), "value", c.Value)
		return nil

	default:
		slog.Warn("ignoring unknown command", "type", fmt.Sprintf("%T", cmd))
		return nil
	}
}

// publish blocks until the output is queued or ctx is done.
func (d *Driver) publish(ctx context.Context, o Output) error {
	select {
	case d.out <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
