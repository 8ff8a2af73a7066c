// Package internal holds small helpers shared across the client.
package internal

// JumpHash maps key onto one of buckets using Google's "Jump" consistent
// hash function (https://arxiv.org/abs/1406.2294). When the bucket count
// changes by one, only 1/buckets of the keys move.
func JumpHash(key uint64, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	var bucket, next int64 = -1, 0
	for next < int64(buckets) {
		bucket = next
		key = key*2862933555777941757 + 1
		next = int64(float64(bucket+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(bucket)
}
