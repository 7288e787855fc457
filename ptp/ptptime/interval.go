/*
Copyright (c) RAVENNA Kit contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ptptime implements the signed PTP time interval: whole seconds
// (48 bits on the wire), integer nanoseconds within the second, and a
// 16-bit binary fraction of a nanosecond, per spec section 3 "PTP
// timestamp / interval".
package ptptime

import (
	"fmt"
	"math/big"
)

// fractionalScale is 2^16, the fraction denominator.
const fractionalScale = 1 << 16

// nanosPerSecScaled is 10^9 * 2^16, the modulus of the internal nanos field.
const nanosPerSecScaled = 1_000_000_000 * fractionalScale

// Interval is a signed PTP interval. The zero value is the zero duration.
// Invariant: 0 <= nanos < nanosPerSecScaled after every operation.
type Interval struct {
	seconds int64
	nanos   int64 // [0, nanosPerSecScaled)
}

// New builds an Interval from whole seconds, integer nanoseconds within the
// second, and a 16-bit fraction of a nanosecond, normalizing as needed.
func New(seconds int64, nanos int32, fraction uint16) Interval {
	iv := Interval{seconds: seconds, nanos: int64(nanos)*fractionalScale + int64(fraction)}
	iv.normalize()
	return iv
}

// FromNanoseconds builds an Interval from a plain (unscaled) nanosecond
// count with zero fraction.
func FromNanoseconds(ns int64) Interval {
	return New(0, 0, 0).addRawNanos(ns * fractionalScale)
}

// Seconds returns the whole-seconds component.
func (iv Interval) Seconds() int64 { return iv.seconds }

// NanosRaw returns the integer nanoseconds within the second, in [0, 1e9).
func (iv Interval) NanosRaw() int64 { return iv.nanos / fractionalScale }

// FractionRaw returns the 16-bit binary fraction of a nanosecond, in [0, 2^16).
func (iv Interval) FractionRaw() uint16 { return uint16(iv.nanos % fractionalScale) }

// Nanoseconds returns the full value as a float64 count of nanoseconds
// (seconds folded in), which may lose precision for large values.
func (iv Interval) Nanoseconds() float64 {
	return float64(iv.seconds)*1e9 + float64(iv.nanos)/fractionalScale
}

// Add returns iv + other.
func (iv Interval) Add(other Interval) Interval {
	r := Interval{seconds: iv.seconds + other.seconds, nanos: iv.nanos + other.nanos}
	r.normalize()
	return r
}

// Sub returns iv - other.
func (iv Interval) Sub(other Interval) Interval {
	r := Interval{seconds: iv.seconds - other.seconds, nanos: iv.nanos - other.nanos}
	r.normalize()
	return r
}

// Mul returns iv * k.
func (iv Interval) Mul(k int64) Interval {
	fraction := (iv.nanos % fractionalScale) * k
	r := Interval{seconds: iv.seconds * k, nanos: (iv.nanos/fractionalScale*fractionalScale)*k + fraction}
	r.normalize()
	return r
}

// Div returns iv / k. k must be non-zero.
func (iv Interval) Div(k int64) Interval {
	r := Interval{seconds: iv.seconds, nanos: iv.nanos + (iv.seconds%k)*1_000_000_000*fractionalScale}
	r.seconds /= k
	r.nanos /= k
	r.normalize()
	return r
}

// Equal reports whether iv and other represent the same interval.
func (iv Interval) Equal(other Interval) bool {
	return iv.seconds == other.seconds && iv.nanos == other.nanos
}

// Compare returns -1, 0 or 1 as iv is less than, equal to, or greater than other.
func (iv Interval) Compare(other Interval) int {
	if iv.seconds != other.seconds {
		if iv.seconds < other.seconds {
			return -1
		}
		return 1
	}
	if iv.nanos != other.nanos {
		if iv.nanos < other.nanos {
			return -1
		}
		return 1
	}
	return 0
}

func (iv Interval) String() string {
	return fmt.Sprintf("%ds%dns+%d/65536ns", iv.seconds, iv.NanosRaw(), iv.FractionRaw())
}

// addRawNanos adds a scaled-nanosecond delta (units of 1/65536 ns) in place
// and returns the normalized result. Used by FromNanoseconds.
func (iv Interval) addRawNanos(delta int64) Interval {
	r := Interval{seconds: iv.seconds, nanos: iv.nanos + delta}
	r.normalize()
	return r
}

func (iv *Interval) normalize() {
	if iv.nanos >= nanosPerSecScaled {
		carry := iv.nanos / nanosPerSecScaled
		iv.seconds += carry
		iv.nanos -= carry * nanosPerSecScaled
	} else if iv.nanos < 0 {
		borrow := -iv.nanos / nanosPerSecScaled
		if iv.nanos%nanosPerSecScaled != 0 {
			borrow++
		}
		iv.seconds -= borrow
		iv.nanos += borrow * nanosPerSecScaled
	}
}

// wireClampMax/wireClampMin are the signed 64-bit extremes used to clamp an
// overflowing wire-format conversion instead of wrapping silently, per
// spec section 9 "Safe arithmetic".
const (
	wireClampMax = int64(^uint64(0) >> 1)
	wireClampMin = -wireClampMax - 1
)

// bigInt64Min/Max bound the representable range of a signed 64-bit word, as
// big.Int, for the checked wire-format conversion below.
var (
	bigInt64Max = big.NewInt(wireClampMax)
	bigInt64Min = big.NewInt(wireClampMin)
)

// ToWire encodes the interval as a signed 64-bit wire value: the top 48
// bits hold signed nanoseconds, the low 16 bits the fraction. On overflow
// the result is clamped to the signed 64-bit extremes and ok is false.
func (iv Interval) ToWire() (value int64, ok bool) {
	total := new(big.Int).Mul(big.NewInt(iv.seconds), big.NewInt(1_000_000_000*fractionalScale))
	total.Add(total, big.NewInt(iv.nanos))
	if total.Cmp(bigInt64Max) > 0 {
		return wireClampMax, false
	}
	if total.Cmp(bigInt64Min) < 0 {
		return wireClampMin, false
	}
	return total.Int64(), true
}

// FromWire decodes a signed 64-bit wire value back into an Interval.
func FromWire(value int64) Interval {
	nanoseconds := value >> 16
	seconds := nanoseconds / 1_000_000_000
	nanoseconds -= seconds * 1_000_000_000
	return New(seconds, int32(nanoseconds), uint16(value&0xffff))
}
