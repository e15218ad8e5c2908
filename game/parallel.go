package game

import (
	"math/rand"
	"runtime"
	"sync"

	"github.com/pthm-cable/evonomics/world"
)

// pass selects which half of the tick a chunk runs.
type pass uint8

const (
	passStep pass = iota
	passUpdate
)

// workChunk is a range of rows for a worker to process.
type workChunk struct {
	rowStart, rowEnd int
	pass             pass
}

// parallelState holds the row worker pool. Each row owns an rng and an event
// counter, so results do not depend on how rows are split between workers.
type parallelState struct {
	rows       []*rand.Rand
	events     []world.Events
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(height, workers int) *parallelState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rows := make([]*rand.Rand, height)
	for i := range rows {
		rows[i] = rand.New(rand.NewSource(int64(i)))
	}
	return &parallelState{
		rows:       rows,
		events:     make([]world.Events, height),
		numWorkers: min(workers, height),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Simulation) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(s *Simulation) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.computeRows(chunk)
			p.doneChan <- struct{}{}
		}
	}
}

// reseed draws a fresh seed for every row from the simulation rng.
func (p *parallelState) reseed(rng *rand.Rand) {
	for _, r := range p.rows {
		r.Seed(rng.Int63())
	}
}

// runPass executes one pass over the whole grid, in parallel when the grid is
// large enough.
func (s *Simulation) runPass(ps pass) {
	p := s.parallel
	p.reseed(s.rng)
	if ps == passUpdate {
		clear(p.events)
	}

	h := s.grid.Height
	if s.grid.Len() < s.parallelThreshold || p.numWorkers <= 1 {
		s.computeRows(workChunk{rowStart: 0, rowEnd: h, pass: ps})
		return
	}

	if !p.running {
		p.startWorkers(s)
	}

	chunkSize := (h + p.numWorkers - 1) / p.numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, h)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{rowStart: start, rowEnd: end, pass: ps}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// computeRows runs a pass over a range of rows for a single worker.
func (s *Simulation) computeRows(chunk workChunk) {
	w := s.grid.Width
	p := s.parallel
	for y := chunk.rowStart; y < chunk.rowEnd; y++ {
		rng := p.rows[y]
		base := y * w
		switch chunk.pass {
		case passStep:
			for x := 0; x < w; x++ {
				s.grid.StepCell(rng, &s.params, base+x)
			}
		case passUpdate:
			ev := &p.events[y]
			for x := 0; x < w; x++ {
				s.grid.UpdateCell(rng, &s.params, base+x, ev)
			}
		}
	}
}

// rowEvents sums the per-row counters of the last update pass.
func (p *parallelState) rowEvents() world.Events {
	var ev world.Events
	for _, e := range p.events {
		ev.Add(e)
	}
	return ev
}

// stopParallelWorkers should be called when shutting down the simulation.
func (s *Simulation) stopParallelWorkers() {
	if s.parallel != nil {
		s.parallel.stopWorkers()
	}
}
