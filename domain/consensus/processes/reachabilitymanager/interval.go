package reachabilitymanager

import (
	"math"
	"math/bits"

	"github.com/kaspanet/reachability/domain/consensus/model"
	"github.com/pkg/errors"
)

func newReachabilityInterval(start uint64, end uint64) *model.ReachabilityInterval {
	return &model.ReachabilityInterval{Start: start, End: end}
}

// emptyInterval returns [1,0]. Any [x+1,x] is empty, this is merely the
// canonical one.
func emptyInterval() *model.ReachabilityInterval {
	return newReachabilityInterval(1, 0)
}

// maximalInterval leaves one unit of margin on both sides of the uint64
// range, so that every interval can be shrunk to an empty one without
// wrapping around.
func maximalInterval() *model.ReachabilityInterval {
	return newReachabilityInterval(1, math.MaxUint64-1)
}

// intervalSize returns the size of ri. Intervals are inclusive from both
// sides, so [1,0] has size 0.
func intervalSize(ri *model.ReachabilityInterval) uint64 {
	return ri.End + 1 - ri.Start
}

func intervalIsEmpty(ri *model.ReachabilityInterval) bool {
	return intervalSize(ri) == 0
}

func intervalIncrease(ri *model.ReachabilityInterval, offset uint64) *model.ReachabilityInterval {
	return newReachabilityInterval(checkedAdd(ri.Start, offset), checkedAdd(ri.End, offset))
}

func intervalDecrease(ri *model.ReachabilityInterval, offset uint64) *model.ReachabilityInterval {
	return newReachabilityInterval(checkedSub(ri.Start, offset), checkedSub(ri.End, offset))
}

func intervalIncreaseStart(ri *model.ReachabilityInterval, offset uint64) *model.ReachabilityInterval {
	return newReachabilityInterval(checkedAdd(ri.Start, offset), ri.End)
}

func intervalDecreaseStart(ri *model.ReachabilityInterval, offset uint64) *model.ReachabilityInterval {
	return newReachabilityInterval(checkedSub(ri.Start, offset), ri.End)
}

func intervalIncreaseEnd(ri *model.ReachabilityInterval, offset uint64) *model.ReachabilityInterval {
	return newReachabilityInterval(ri.Start, checkedAdd(ri.End, offset))
}

func intervalDecreaseEnd(ri *model.ReachabilityInterval, offset uint64) *model.ReachabilityInterval {
	return newReachabilityInterval(ri.Start, checkedSub(ri.End, offset))
}

// checkedAdd and checkedSub panic on wrap-around. Interval arithmetic
// overflowing is a bug in the caller, not a recoverable condition.
func checkedAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		panic(errors.Errorf("interval overflow: %d + %d", a, b))
	}
	return sum
}

func checkedSub(a, b uint64) uint64 {
	if b > a {
		panic(errors.Errorf("interval underflow: %d - %d", a, b))
	}
	return a - b
}

// sumWithoutOverflow returns the sum of values, and false if it does not
// fit in a uint64.
func sumWithoutOverflow(values ...uint64) (uint64, bool) {
	var sum, carry uint64
	for _, value := range values {
		sum, carry = bits.Add64(sum, value, 0)
		if carry != 0 {
			return 0, false
		}
	}
	return sum, true
}

// intervalSplitInHalf splits ri by a fraction of 0.5.
// See intervalSplitFraction for further details.
func intervalSplitInHalf(ri *model.ReachabilityInterval) (
	left *model.ReachabilityInterval, right *model.ReachabilityInterval, err error) {

	return intervalSplitFraction(ri, 0.5)
}

// intervalSplitFraction splits ri into two parts whose union is ri, where
// the left part holds the given fraction of its size. Fractional sizes
// round the left part up.
func intervalSplitFraction(ri *model.ReachabilityInterval, fraction float64) (
	left *model.ReachabilityInterval, right *model.ReachabilityInterval, err error) {

	if fraction < 0 || fraction > 1 {
		return nil, nil, errors.Errorf("fraction %f must be between 0 and 1", fraction)
	}
	if intervalIsEmpty(ri) {
		return nil, nil, errors.Errorf("cannot split the empty interval %s", ri)
	}

	leftSize := uint64(math.Ceil(float64(intervalSize(ri)) * fraction))
	left = newReachabilityInterval(ri.Start, ri.Start+leftSize-1)
	right = newReachabilityInterval(ri.Start+leftSize, ri.End)
	return left, right, nil
}

// intervalSplitExact splits ri into len(sizes) consecutive parts where
// part i has size sizes[i]. sum(sizes) must equal the size of ri.
func intervalSplitExact(ri *model.ReachabilityInterval, sizes []uint64) ([]*model.ReachabilityInterval, error) {
	sizesSum := sumSizes(sizes)
	if sizesSum != intervalSize(ri) {
		return nil, errors.Errorf("sum of sizes (%d) must be equal to the size of %s", sizesSum, ri)
	}

	intervals := make([]*model.ReachabilityInterval, len(sizes))
	start := ri.Start
	for i, size := range sizes {
		intervals[i] = newReachabilityInterval(start, start+size-1)
		start += size
	}
	return intervals, nil
}

// intervalSplitWithExponentialBias splits ri into len(sizes) parts where
// part i gets at least sizes[i]. sum(sizes) must not exceed the size of
// ri. The surplus is distributed with a bias that grows exponentially
// with the subtree size: the largest subtree is the one expected to keep
// growing, since that's where the selected chain most likely continues.
func intervalSplitWithExponentialBias(ri *model.ReachabilityInterval, sizes []uint64) ([]*model.ReachabilityInterval, error) {
	size := intervalSize(ri)
	sizesSum := sumSizes(sizes)
	if sizesSum > size {
		return nil, errors.Errorf("sum of sizes (%d) must be less than or equal to the size of %s",
			sizesSum, ri)
	}
	if sizesSum == size {
		return intervalSplitExact(ri, sizes)
	}

	totalBias := size - sizesSum
	remainingBias := totalBias
	biasedSizes := make([]uint64, len(sizes))
	fractions := exponentialFractions(sizes)
	lastIndex := len(fractions) - 1
	for i, fraction := range fractions {
		bias := remainingBias
		if i != lastIndex {
			bias = uint64(math.Round(float64(totalBias) * fraction))
			if bias > remainingBias {
				bias = remainingBias
			}
		}
		biasedSizes[i] = sizes[i] + bias
		remainingBias -= bias
	}
	return intervalSplitExact(ri, biasedSizes)
}

// exponentialFractions returns, for every size, the fraction
//   2^sizes[i] / sum_j(2^sizes[j])
// computed as 2^-(max-sizes[i]) normalized, so that nothing overflows.
// Tiny fractions lose precision, which is harmless: they all carry
// effectively zero weight.
func exponentialFractions(sizes []uint64) []float64 {
	maxSize := uint64(0)
	for _, size := range sizes {
		if size > maxSize {
			maxSize = size
		}
	}

	fractions := make([]float64, len(sizes))
	fractionsSum := float64(0)
	for i, size := range sizes {
		fractions[i] = math.Pow(2, -float64(maxSize-size))
		fractionsSum += fractions[i]
	}
	for i := range fractions {
		fractions[i] /= fractionsSum
	}
	return fractions
}

func sumSizes(sizes []uint64) uint64 {
	sum := uint64(0)
	for _, size := range sizes {
		sum += size
	}
	return sum
}

// intervalContains returns true if ri contains other.
func intervalContains(ri *model.ReachabilityInterval, other *model.ReachabilityInterval) bool {
	return ri.Start <= other.Start && other.End <= ri.End
}

// intervalStrictlyContains returns true if ri contains other and ends
// after it. The last unit of a tree node's interval is never handed to
// its children, so a strict ancestor always ends strictly later.
func intervalStrictlyContains(ri *model.ReachabilityInterval, other *model.ReachabilityInterval) bool {
	return ri.Start <= other.Start && other.End < ri.End
}
