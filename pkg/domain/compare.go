package domain

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"strings"
)

// typeRank orders variants across type classes:
// null < numbers < string < document < array < binary < objectId < bool < date.
func typeRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindInt32, KindInt64, KindDouble:
		return 1
	case KindString:
		return 2
	case KindDocument:
		return 3
	case KindArray:
		return 4
	case KindBinary:
		return 5
	case KindObjectID:
		return 6
	case KindBool:
		return 7
	case KindDateTime:
		return 8
	}
	return 9
}

// Comparable reports whether range comparisons between a and b are defined:
// numeric vs numeric, string vs string, date vs date, and same-kind otherwise.
func Comparable(a, b Value) bool {
	return typeRank(a.kind) == typeRank(b.kind)
}

// Compare is a total order over Values. Values from different type classes
// order by class; numbers compare by value regardless of width.
func Compare(a, b Value) int {
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindInt32, KindInt64, KindDouble:
		return compareNumbers(a, b)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindDocument:
		return compareDocuments(a.doc, b.doc)
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a.arr), len(b.arr))
	case KindBinary:
		if len(a.bin) != len(b.bin) {
			return cmpInt(len(a.bin), len(b.bin))
		}
		return bytes.Compare(a.bin, b.bin)
	case KindObjectID:
		return bytes.Compare(a.oid[:], b.oid[:])
	case KindBool, KindDateTime:
		return cmpInt64(a.i, b.i)
	}
	return 0
}

func compareNumbers(a, b Value) int {
	switch {
	case a.kind != KindDouble && b.kind != KindDouble:
		return cmpInt64(a.i, b.i)
	case a.kind == KindDouble && b.kind == KindDouble:
		return compareDoubles(a.f, b.f)
	case a.kind == KindDouble:
		return -compareIntDouble(b.i, a.f)
	}
	return compareIntDouble(a.i, b.f)
}

// NaN sorts below every number.
func compareDoubles(fa, fb float64) int {
	switch {
	case math.IsNaN(fa) && math.IsNaN(fb):
		return 0
	case math.IsNaN(fa):
		return -1
	case math.IsNaN(fb):
		return 1
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

// compareIntDouble compares i and f exactly, without rounding i to a double.
func compareIntDouble(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= twoTo63:
		return -1
	case f < -twoTo63:
		return 1
	}
	t := math.Trunc(f)
	if c := cmpInt64(i, int64(t)); c != 0 {
		return c
	}
	switch {
	case f > t:
		return -1
	case f < t:
		return 1
	}
	return 0
}

const twoTo63 = float64(1 << 63)

// compareDocuments walks both documents in sorted key order, matching
// CanonicalKey and Matches, which ignore key order.
func compareDocuments(a, b *Document) int {
	ak := sortedKeys(a)
	bk := sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a.values[ak[i]], b.values[bk[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ak), len(bk))
}

func sortedKeys(d *Document) []string {
	keys := append([]string{}, d.keys...)
	sort.Strings(keys)
	return keys
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CanonicalKey renders v as a string that is equal for two values exactly when
// they are equal under Matches. Numbers are normalized across widths and document
// keys are sorted, so the key is usable for hashing (indexes, group partitions).
func CanonicalKey(v Value) string {
	var sb strings.Builder
	writeCanonical(&sb, v)
	return sb.String()
}

func writeCanonical(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		sb.WriteString("n")
	case KindBool:
		sb.WriteString("b")
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindInt32, KindInt64:
		sb.WriteString("#")
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindDouble:
		sb.WriteString("#")
		f := v.f
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			sb.WriteString(strconv.FormatInt(int64(f), 10))
		} else {
			sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case KindString:
		sb.WriteString("s")
		sb.WriteString(strconv.Quote(v.s))
	case KindBinary:
		sb.WriteString("x")
		sb.WriteString(strconv.Quote(string(v.bin)))
	case KindDateTime:
		sb.WriteString("d")
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindObjectID:
		sb.WriteString("o")
		sb.WriteString(v.oid.String())
	case KindArray:
		sb.WriteString("[")
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteString(",")
			}
			writeCanonical(sb, e)
		}
		sb.WriteString("]")
	case KindDocument:
		keys := sortedKeys(v.doc)
		sb.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(":")
			writeCanonical(sb, v.doc.values[k])
		}
		sb.WriteString("}")
	}
}
