package brain

import (
	"fmt"
	"math/rand"
)

// Op is a codon opcode.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpLiteral
	OpLess
	OpJump
	OpCopy
	OpRead
	OpInput
	OpWrite
	OpMove
	OpDivide
	OpTrade
	OpOffer
	OpRotateLeft
	OpRotateRight
	OpNothing

	numOps
)

var opNames = [numOps]string{
	"add", "sub", "mul", "div", "lit", "less", "jump", "copy", "read", "input",
	"write", "move", "divide", "trade", "offer", "rotl", "rotr", "nop",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// branches reports whether the op carries a relative branch offset in Arg.
func (o Op) branches() bool {
	return o == OpLess || o == OpJump
}

// Codon is a single instruction. Which operand fields are meaningful depends on Op:
// Value for Literal and Offer (rate), Arg for index ops, branch offsets and Offer
// (quantity), Dir for Move and Divide.
type Codon struct {
	Op    Op
	Arg   int32
	Value float64
	Dir   Direction
}

func (c Codon) String() string {
	switch c.Op {
	case OpLiteral:
		return fmt.Sprintf("%s %.4g", c.Op, c.Value)
	case OpLess, OpJump:
		return fmt.Sprintf("%s %+d", c.Op, c.Arg)
	case OpCopy, OpRead, OpInput, OpWrite:
		return fmt.Sprintf("%s %d", c.Op, c.Arg)
	case OpMove, OpDivide:
		return fmt.Sprintf("%s %s", c.Op, c.Dir)
	case OpOffer:
		return fmt.Sprintf("%s %d@%.4g", c.Op, c.Arg, c.Value)
	default:
		return c.Op.String()
	}
}

const (
	// BranchLimit bounds freshly sampled branch offsets.
	BranchLimit = 32
	// offerQuantity and offerRate bound fixed trade codons.
	offerQuantity = 8
	offerRate     = 8
	literalScale  = 4
)

// RandomCodon samples a codon uniformly over the opcode set.
func RandomCodon(rng *rand.Rand) Codon {
	c := Codon{Op: Op(rng.Intn(int(numOps)))}
	switch c.Op {
	case OpLiteral:
		c.Value = rng.NormFloat64() * literalScale
	case OpLess, OpJump:
		c.Arg = randomOffset(rng)
	case OpCopy:
		c.Arg = rng.Int31n(16)
	case OpRead, OpWrite:
		c.Arg = rng.Int31n(NumState)
	case OpInput:
		c.Arg = rng.Int31()
	case OpMove, OpDivide:
		c.Dir = Direction(rng.Intn(NumDirections))
	case OpOffer:
		c.Arg = rng.Int31n(2*offerQuantity+1) - offerQuantity
		c.Value = float64(rng.Intn(offerRate + 1))
	}
	return c
}

func randomOffset(rng *rand.Rand) int32 {
	return rng.Int31n(2*BranchLimit+1) - BranchLimit
}
