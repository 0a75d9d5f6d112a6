package fixtures

import "math/rand"

const (
	fixedStringsSeed = 42
	fixedIndexSeed   = 23

	minStringLength = 16
	maxStringLength = 64
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CreateFixedRandomStrings returns count pseudo-random strings. The result is
// the same for every call so that separate runs operate on identical data.
func CreateFixedRandomStrings(count int) []string {
	r := rand.New(rand.NewSource(fixedStringsSeed))

	strings := make([]string, count)
	for i := range strings {
		length := minStringLength + r.Intn(maxStringLength-minStringLength+1)
		b := make([]byte, length)
		for j := range b {
			b[j] = alphabet[r.Intn(len(alphabet))]
		}
		strings[i] = string(b)
	}
	return strings
}

// FixedRandomIndices returns count pseudo-random indices in [0, maxIndex]. The
// result is the same for every call with the same arguments.
func FixedRandomIndices(count, maxIndex int) []int {
	r := rand.New(rand.NewSource(fixedIndexSeed))

	indices := make([]int, count)
	for i := range indices {
		indices[i] = r.Intn(maxIndex + 1)
	}
	return indices
}
