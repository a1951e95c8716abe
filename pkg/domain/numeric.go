package domain

import "math"

// Add sums two numeric values, keeping the narrowest type that holds the
// result: Int32+Int32 stays Int32 unless it overflows, any Int64 operand gives
// Int64 and any Double operand gives Double. Non-numeric operands yield false.
func Add(a, b Value) (Value, bool) {
	if !a.kind.IsNumeric() || !b.kind.IsNumeric() {
		return Value{}, false
	}
	if a.kind == KindDouble || b.kind == KindDouble {
		x, _ := a.Float64()
		y, _ := b.Float64()
		return Double(x + y), true
	}
	sum := a.i + b.i
	if a.kind == KindInt32 && b.kind == KindInt32 && sum >= math.MinInt32 && sum <= math.MaxInt32 {
		return Int32(int32(sum)), true
	}
	return Int64(sum), true
}
