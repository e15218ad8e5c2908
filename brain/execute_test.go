package brain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(codons ...Codon) *Genome {
	return &Genome{Sequence: codons, Entries: []int{0}}
}

func lit(v float64) Codon { return Codon{Op: OpLiteral, Value: v} }
func op(o Op, arg int32) Codon { return Codon{Op: o, Arg: arg} }
func move(d Direction) Codon { return Codon{Op: OpMove, Dir: d} }

func TestExecuteEmptyGenome(t *testing.T) {
	g := &Genome{}
	assert.Equal(t, Action{}, g.Execute([]float64{1, 2}, make([]float64, NumState), 0))
	assert.Equal(t, Action{}, g.Execute(nil, nil, -7))
}

func TestExecuteBoundedLoops(t *testing.T) {
	tests := []struct {
		name string
		g    *Genome
	}{
		{"jump to self", seq(op(OpJump, 0))},
		{"less loop", seq(lit(1), lit(2), op(OpLess, -2))},
		{"jump back forever", seq(lit(1), op(OpJump, -1))},
		{"wrapping fallthrough", seq(lit(1), lit(2), op(OpCopy, 0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ActNothing, tt.g.Execute(nil, make([]float64, NumState), 0).Kind)
		})
	}
}

func TestExecuteOperandsWrap(t *testing.T) {
	inputs := []float64{10, 20, 30}
	memory := make([]float64, NumState)

	g := seq(op(OpInput, 1000), op(OpWrite, 7))
	got := g.Execute(inputs, memory, 0)
	assert.Equal(t, Action{Kind: ActWrite, Register: 3, Value: 20}, got)

	g = seq(op(OpInput, -1), op(OpWrite, -1))
	got = g.Execute(inputs, memory, 0)
	assert.Equal(t, Action{Kind: ActWrite, Register: 3, Value: 30}, got)

	// entry offsets wrap too
	g = seq(lit(5), op(OpWrite, 0))
	got = g.Execute(inputs, memory, 2)
	assert.Equal(t, Action{Kind: ActWrite, Register: 0, Value: 5}, got)
}

func TestExecuteUnderflow(t *testing.T) {
	for _, o := range []Op{OpAdd, OpSub, OpMul, OpDiv, OpLess, OpTrade} {
		g := seq(lit(1), op(o, 0), move(Right))
		assert.Equal(t, ActNothing, g.Execute(nil, nil, 0).Kind, o.String())
	}
	assert.Equal(t, ActNothing, seq(op(OpCopy, 0)).Execute(nil, nil, 0).Kind)
	assert.Equal(t, ActNothing, seq(op(OpWrite, 0)).Execute(nil, make([]float64, NumState), 0).Kind)
	assert.Equal(t, ActNothing, seq(op(OpInput, 0), move(Right)).Execute(nil, nil, 0).Kind)
	assert.Equal(t, ActNothing, seq(op(OpRead, 0), move(Right)).Execute(nil, nil, 0).Kind)
}

func TestExecuteArithmetic(t *testing.T) {
	memory := make([]float64, NumState)
	tests := []struct {
		o    Op
		want float64
	}{
		{OpAdd, 9},
		{OpSub, 3},
		{OpMul, 18},
		{OpDiv, 2},
	}
	for _, tt := range tests {
		got := seq(lit(6), lit(3), op(tt.o, 0), op(OpWrite, 1)).Execute(nil, memory, 0)
		assert.Equal(t, tt.want, got.Value, tt.o.String())
	}

	got := seq(lit(1), lit(0), op(OpDiv, 0), op(OpWrite, 0)).Execute(nil, memory, 0)
	assert.True(t, math.IsInf(got.Value, 1))
}

func TestExecuteLessBranch(t *testing.T) {
	g := seq(op(OpInput, 0), op(OpInput, 1), op(OpLess, 2), move(Right), move(Left))
	assert.Equal(t, Action{Kind: ActMove, Dir: Left}, g.Execute([]float64{1, 2}, nil, 0))
	assert.Equal(t, Action{Kind: ActMove, Dir: Right}, g.Execute([]float64{2, 1}, nil, 0))
}

func TestExecuteCopyAndRead(t *testing.T) {
	memory := []float64{0, 0, 4, 0}
	g := seq(op(OpRead, 2), lit(1), op(OpCopy, 1), op(OpWrite, 0))
	assert.Equal(t, Action{Kind: ActWrite, Register: 0, Value: 4}, g.Execute(nil, memory, 0))
}

func TestExecuteTrade(t *testing.T) {
	g := seq(lit(-3), lit(5), op(OpTrade, 0))
	assert.Equal(t, Action{Kind: ActTrade, Quantity: -3, Rate: 5}, g.Execute(nil, nil, 0))

	g = seq(Codon{Op: OpOffer, Arg: 4, Value: 2})
	assert.Equal(t, Action{Kind: ActTrade, Quantity: 4, Rate: 2}, g.Execute(nil, nil, 0))
}

func TestExecuteTerminals(t *testing.T) {
	assert.Equal(t, Action{Kind: ActDivide, Dir: Down}, seq(Codon{Op: OpDivide, Dir: Down}).Execute(nil, nil, 0))
	assert.Equal(t, ActRotateLeft, seq(op(OpRotateLeft, 0)).Execute(nil, nil, 0).Kind)
	assert.Equal(t, ActRotateRight, seq(op(OpRotateRight, 0)).Execute(nil, nil, 0).Kind)
	assert.Equal(t, ActNothing, seq(op(OpNothing, 0), move(Up)).Execute(nil, nil, 0).Kind)
}

func TestDirectionRotate(t *testing.T) {
	assert.Equal(t, Up, Right.Rotate(1))
	assert.Equal(t, Left, Right.Rotate(2))
	assert.Equal(t, DownRight, UpRight.Rotate(3))
	assert.Equal(t, UpLeft, UpLeft.Rotate(4))
	assert.Equal(t, Left, Right.Opposite())

	for d := Direction(0); d < NumDirections; d++ {
		dx, dy := d.Offset()
		ox, oy := d.Opposite().Offset()
		assert.Equal(t, 0, dx+ox, d.String())
		assert.Equal(t, 0, dy+oy, d.String())
	}
}
