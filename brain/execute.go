package brain

// MaxExecute caps the number of codons a single gene run may execute.
const MaxExecute = 128

// ActionKind classifies the terminal result of one gene run.
type ActionKind uint8

const (
	ActNothing ActionKind = iota
	ActWrite
	ActMove
	ActDivide
	ActTrade
	ActRotateLeft
	ActRotateRight
)

// Action is what a gene run asks for. Register and Value apply to writes,
// Dir to moves and divisions, Quantity and Rate to trades.
type Action struct {
	Kind     ActionKind
	Register int
	Value    float64
	Dir      Direction
	Quantity float64
	Rate     float64
}

// Execute runs the genome from entry against the sensory inputs and memory.
// It is pure: memory is only read, and the result says what to write.
// Execution stops at the first terminal codon, on stack underflow, or after
// MaxExecute steps, whichever comes first. It never panics.
func (g *Genome) Execute(inputs, memory []float64, entry int) Action {
	n := len(g.Sequence)
	if n == 0 {
		return Action{}
	}

	var buf [MaxExecute]float64
	stack := buf[:0]
	pop := func() float64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	at := wrap(entry, n)
	for step := 0; step < MaxExecute; step++ {
		c := g.Sequence[at]
		next := at + 1
		switch c.Op {
		case OpAdd, OpSub, OpMul, OpDiv:
			if len(stack) < 2 {
				return Action{}
			}
			b, a := pop(), pop()
			stack = append(stack, arith(c.Op, a, b))
		case OpLiteral:
			stack = append(stack, c.Value)
		case OpLess:
			if len(stack) < 2 {
				return Action{}
			}
			b, a := pop(), pop()
			if a < b {
				next = at + int(c.Arg)
			}
		case OpJump:
			next = at + int(c.Arg)
		case OpCopy:
			if len(stack) == 0 {
				return Action{}
			}
			stack = append(stack, stack[len(stack)-1-wrap(int(c.Arg), len(stack))])
		case OpRead:
			if len(memory) == 0 {
				return Action{}
			}
			stack = append(stack, memory[wrap(int(c.Arg), len(memory))])
		case OpInput:
			if len(inputs) == 0 {
				return Action{}
			}
			stack = append(stack, inputs[wrap(int(c.Arg), len(inputs))])
		case OpWrite:
			if len(stack) == 0 || len(memory) == 0 {
				return Action{}
			}
			return Action{Kind: ActWrite, Register: wrap(int(c.Arg), len(memory)), Value: pop()}
		case OpMove:
			return Action{Kind: ActMove, Dir: c.Dir}
		case OpDivide:
			return Action{Kind: ActDivide, Dir: c.Dir}
		case OpTrade:
			if len(stack) < 2 {
				return Action{}
			}
			rate, qty := pop(), pop()
			return Action{Kind: ActTrade, Quantity: qty, Rate: rate}
		case OpOffer:
			return Action{Kind: ActTrade, Quantity: float64(c.Arg), Rate: c.Value}
		case OpRotateLeft:
			return Action{Kind: ActRotateLeft}
		case OpRotateRight:
			return Action{Kind: ActRotateRight}
		default:
			return Action{}
		}
		at = wrap(next, n)
	}
	return Action{}
}

func arith(op Op, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	default:
		return a / b
	}
}

// wrap reduces i into [0, n) with Euclidean semantics. n must be positive.
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
