package observer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pthm-cable/evonomics/game"
	"github.com/pthm-cable/evonomics/market"
)

//go:embed command.schema.json
var commandSchemaJSON []byte

const commandSchemaURL = "command.schema.json"

func compileCommandSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(commandSchemaURL, bytes.NewReader(commandSchemaJSON)); err != nil {
		return nil, fmt.Errorf("loading command schema: %w", err)
	}
	return c.Compile(commandSchemaURL)
}

// commandMsg is a client command after schema validation.
type commandMsg struct {
	Type  string  `json:"type"`
	Count int     `json:"count,omitempty"`
	Param string  `json:"param,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// parseCommand validates raw against the schema and converts it to a driver
// command. Range checks on values are left to the driver.
func parseCommand(schema *jsonschema.Schema, raw []byte) (game.Command, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("bad json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}

	var msg commandMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("bad command: %w", err)
	}
	switch msg.Type {
	case "tick":
		return game.TickCommand{Count: msg.Count}, nil
	case "set":
		p, err := game.ParseParam(msg.Param)
		if err != nil {
			return nil, err
		}
		return game.SetParam{Param: p, Value: msg.Value}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", msg.Type)
}

// Frames sent to clients. Market and control frames are JSON text; views are
// zstd-compressed JSON binary frames.

type helloFrame struct {
	Type    string `json:"type"` // "hello"
	Session string `json:"session"`
}

type errorFrame struct {
	Type  string `json:"type"` // "error"
	Error string `json:"error"`
}

type marketFrame struct {
	Type  string       `json:"type"` // "market"
	Stats market.Stats `json:"stats"`
}

// viewFrame packs colors as RGBA bytes.
type viewFrame struct {
	Type        string   `json:"type"` // "view"
	Tick        uint64   `json:"tick"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Agents      int      `json:"agents"`
	Ticks       int      `json:"ticks"`
	RGBA        []byte   `json:"rgba"`
	Generations []uint32 `json:"generations"`
}

func newViewFrame(v game.View) viewFrame {
	rgba := make([]byte, 0, 4*len(v.Colors))
	for _, c := range v.Colors {
		rgba = append(rgba, c.R, c.G, c.B, c.A)
	}
	return viewFrame{
		Type:        "view",
		Tick:        v.Tick,
		Width:       v.Width,
		Height:      v.Height,
		Agents:      v.Agents,
		Ticks:       v.Ticks,
		RGBA:        rgba,
		Generations: v.Generations,
	}
}
