package game

import (
	"log/slog"

	"github.com/pthm-cable/evonomics/world"
)

// logWorld logs a one-line summary of the grid and the reserve.
func (s *Simulation) logWorld(msg string) {
	var walls, sources, agents int
	var food uint64
	for i := range s.grid.Cells() {
		c := s.grid.Cell(i)
		switch c.Kind {
		case world.KindWall:
			walls++
		case world.KindSource:
			sources++
		}
		if c.Occupied() {
			agents++
		}
		food += uint64(c.Food)
	}

	slog.Info(msg,
		"run_id", s.runID,
		"seed", s.seed,
		"tick", s.tick,
		slog.Group("size", "width", s.grid.Width, "height", s.grid.Height),
		"walls", walls,
		"sources", sources,
		"agents", agents,
		"food", food,
		"reserve", s.engine.Reserve(),
		"supply", s.supply,
	)
}

// LogSummary logs the current world state.
func (s *Simulation) LogSummary() {
	s.logWorld("world state")
}
