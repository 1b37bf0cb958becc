package transtable

import "math/bits"

// clusterIndex maps a 64-bit key to a cluster index in [0, clusterCount)
// using the high half of the widening product key*clusterCount. This is
// uniform over the range without requiring clusterCount to be a power of
// two and without a division on the hot path.
func clusterIndex(key uint64, clusterCount uint64) uint64 {
	hi, _ := bits.Mul64(key, clusterCount)
	return hi
}
