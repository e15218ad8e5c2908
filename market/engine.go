// Package market clears food-for-money orders in a continuous double auction
// backed by a central reserve.
package market

import (
	"log/slog"
	"math/rand"
)

// ReserveRate is the fixed money-per-food price the reserve trades at.
const ReserveRate = 1

// Order asks to trade food for money. Quantity < 0 bids (buys food), > 0 asks
// (sells food). Rate is money per unit of food. Occupant is the cell's occupant
// stamp when the order was placed; a resting order dies once it changes.
type Order struct {
	Cell     int
	Quantity int
	Rate     int
	Occupant uint64

	seq uint64
}

// Ledger exposes cell holdings to the market. Implementations must not be
// touched concurrently with Clear.
type Ledger interface {
	Food(cell int) uint32
	Money(cell int) uint32
	AddFood(cell int, n uint32)
	TakeFood(cell int, n uint32)
	AddMoney(cell int, n uint32)
	TakeMoney(cell int, n uint32)
	// Occupant identifies who holds the cell. It changes whenever the
	// occupant arrives, leaves, dies or is merged.
	Occupant(cell int) uint64
}

// Stats summarizes one clearing round.
type Stats struct {
	Tick              uint64 `json:"tick" csv:"tick"`
	LastBid           int    `json:"last_bid" csv:"last_bid"` // best resting bid, -1 if none
	LastAsk           int    `json:"last_ask" csv:"last_ask"` // best resting ask, -1 if none
	Reserve           uint64 `json:"reserve" csv:"reserve"`
	BuyVolume         uint64 `json:"buy_volume" csv:"buy_volume"`
	SellVolume        uint64 `json:"sell_volume" csv:"sell_volume"`
	BoughtFromReserve uint64 `json:"bought_from_reserve" csv:"bought_from_reserve"`
	SoldToReserve     uint64 `json:"sold_to_reserve" csv:"sold_to_reserve"`
	Trades            int    `json:"trades" csv:"trades"`
	Orders            int    `json:"orders" csv:"orders"`
	Cancelled         int    `json:"cancelled" csv:"cancelled"` // resting orders whose occupant left
	RestingBids       int    `json:"resting_bids" csv:"resting_bids"`
	RestingAsks       int    `json:"resting_asks" csv:"resting_asks"`
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("tick", s.Tick),
		slog.Int("last_bid", s.LastBid),
		slog.Int("last_ask", s.LastAsk),
		slog.Uint64("reserve", s.Reserve),
		slog.Uint64("buy_volume", s.BuyVolume),
		slog.Uint64("sell_volume", s.SellVolume),
		slog.Int("trades", s.Trades),
	)
}

// Options configures an Engine.
type Options struct {
	Reserve         uint64
	ReserveFallback bool
	MaxResting      int // per side, 0 means unbounded
}

// Engine holds the order books and the reserve. Unfilled orders rest across ticks.
type Engine struct {
	bids     *Queue
	asks     *Queue
	reserve  uint64
	fallback bool
	limit    int
	seq      uint64
	tick     uint64
}

// NewEngine creates an engine holding the given reserve.
func NewEngine(opts Options) *Engine {
	return &Engine{
		bids:     newBidQueue(),
		asks:     newAskQueue(),
		reserve:  opts.Reserve,
		fallback: opts.ReserveFallback,
		limit:    opts.MaxResting,
	}
}

// Reserve returns the money held by the reserve.
func (e *Engine) Reserve() uint64 { return e.reserve }

// Deposit adds reclaimed money to the reserve.
func (e *Engine) Deposit(n uint64) { e.reserve += n }

// Resting returns the number of resting bids and asks.
func (e *Engine) Resting() (bids, asks int) { return e.bids.Len(), e.asks.Len() }

// Clear processes the orders in random order against the books and the reserve.
// Resting orders whose occupant has changed are cancelled first. Trades execute
// at the ask's rate and are bounded by the seller's food and the buyer's money,
// so money only ever moves between cells and the reserve.
func (e *Engine) Clear(rng *rand.Rand, ledger Ledger, orders []Order) Stats {
	e.tick++
	rng.Shuffle(len(orders), func(i, j int) { orders[i], orders[j] = orders[j], orders[i] })

	s := Stats{Tick: e.tick, Orders: len(orders)}
	live := func(o Order) bool { return ledger.Occupant(o.Cell) == o.Occupant }
	s.Cancelled = e.bids.Retain(live) + e.asks.Retain(live)
	for _, o := range orders {
		e.seq++
		o.seq = e.seq
		switch {
		case o.Quantity < 0:
			e.bid(ledger, o, &s)
		case o.Quantity > 0:
			e.ask(ledger, o, &s)
		}
	}
	e.trim()

	s.LastBid, s.LastAsk = -1, -1
	if b, ok := e.bids.PeekMax(); ok {
		s.LastBid = b.Rate
	}
	if a, ok := e.asks.PeekMin(); ok {
		s.LastAsk = a.Rate
	}
	s.Reserve = e.reserve
	s.RestingBids, s.RestingAsks = e.Resting()
	return s
}

func (e *Engine) bid(ledger Ledger, o Order, s *Stats) {
	var own []Order
	defer func() {
		for _, a := range own {
			e.asks.Push(a)
		}
	}()

	remaining := -o.Quantity
	for remaining > 0 {
		ask, ok := e.asks.PeekMin()
		crosses := ok && ask.Rate <= o.Rate
		if e.fallback && o.Rate >= ReserveRate && (!crosses || ask.Rate > ReserveRate) {
			if n := e.buyFromReserve(ledger, o.Cell, remaining, s); n > 0 {
				remaining -= n
				continue
			}
		}
		if !crosses {
			break
		}
		e.asks.PopMin()
		if ask.Cell == o.Cell {
			own = append(own, ask)
			continue
		}

		n := min(remaining, ask.Quantity, int(ledger.Food(ask.Cell)))
		if ask.Rate > 0 {
			n = min(n, int(ledger.Money(o.Cell))/ask.Rate)
		}
		if n == 0 {
			if ledger.Food(ask.Cell) == 0 {
				continue // stale ask
			}
			e.asks.Push(ask)
			return // buyer is broke
		}
		settle(ledger, o.Cell, ask.Cell, n, ask.Rate, s)
		remaining -= n
		if ask.Quantity -= n; ask.Quantity > 0 {
			e.asks.Push(ask)
		}
	}
	if remaining > 0 {
		o.Quantity = -remaining
		e.bids.Push(o)
	}
}

func (e *Engine) ask(ledger Ledger, o Order, s *Stats) {
	var own []Order
	defer func() {
		for _, b := range own {
			e.bids.Push(b)
		}
	}()

	remaining := o.Quantity
	for remaining > 0 {
		bid, ok := e.bids.PeekMax()
		crosses := ok && bid.Rate >= o.Rate
		if e.fallback && o.Rate <= ReserveRate && (!crosses || o.Rate < ReserveRate) {
			if n := e.sellToReserve(ledger, o.Cell, remaining, s); n > 0 {
				remaining -= n
				continue
			}
		}
		if !crosses {
			break
		}
		e.bids.PopMax()
		if bid.Cell == o.Cell {
			own = append(own, bid)
			continue
		}

		n := min(remaining, -bid.Quantity, int(ledger.Food(o.Cell)))
		if o.Rate > 0 {
			n = min(n, int(ledger.Money(bid.Cell))/o.Rate)
		}
		if n == 0 {
			if ledger.Food(o.Cell) == 0 {
				e.bids.Push(bid)
				return // seller has nothing left
			}
			continue // stale bid
		}
		settle(ledger, bid.Cell, o.Cell, n, o.Rate, s)
		remaining -= n
		if bid.Quantity += n; bid.Quantity < 0 {
			e.bids.Push(bid)
		}
	}
	if remaining > 0 && ledger.Food(o.Cell) > 0 {
		o.Quantity = remaining
		e.asks.Push(o)
	}
}

func settle(ledger Ledger, buyer, seller, n, rate int, s *Stats) {
	ledger.TakeFood(seller, uint32(n))
	ledger.AddFood(buyer, uint32(n))
	ledger.TakeMoney(buyer, uint32(n*rate))
	ledger.AddMoney(seller, uint32(n*rate))
	s.BuyVolume += uint64(n)
	s.SellVolume += uint64(n)
	s.Trades++
}

// buyFromReserve sells reserve food to cell at ReserveRate.
func (e *Engine) buyFromReserve(ledger Ledger, cell, want int, s *Stats) int {
	n := min(want, int(ledger.Money(cell))/ReserveRate)
	if n <= 0 {
		return 0
	}
	ledger.TakeMoney(cell, uint32(n*ReserveRate))
	ledger.AddFood(cell, uint32(n))
	e.reserve += uint64(n * ReserveRate)
	s.BuyVolume += uint64(n)
	s.BoughtFromReserve += uint64(n)
	return n
}

// sellToReserve buys food from cell at ReserveRate while the reserve can pay.
func (e *Engine) sellToReserve(ledger Ledger, cell, want int, s *Stats) int {
	n := min(want, int(ledger.Food(cell)))
	if affordable := e.reserve / ReserveRate; uint64(n) > affordable {
		n = int(affordable)
	}
	if n <= 0 {
		return 0
	}
	ledger.TakeFood(cell, uint32(n))
	ledger.AddMoney(cell, uint32(n*ReserveRate))
	e.reserve -= uint64(n * ReserveRate)
	s.SellVolume += uint64(n)
	s.SoldToReserve += uint64(n)
	return n
}

// trim evicts the worst resting orders beyond the per-side limit.
func (e *Engine) trim() {
	if e.limit <= 0 {
		return
	}
	for e.bids.Len() > e.limit {
		e.bids.PopMin()
	}
	for e.asks.Len() > e.limit {
		e.asks.PopMax()
	}
}
