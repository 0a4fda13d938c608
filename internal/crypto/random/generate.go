package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Fixes any insecure patterns found in slice input.
// Insecure can mean: empty, nil, all identical values.
// Modifies slice directly so all references are updated.
func PopulateEmptySlice(slice *[]byte, size int) (err error) {
	if len(*slice) == 0 {
		*slice = make([]byte, size)
	}

	if isAllIdentical(*slice) {
		_, err = rand.Read(*slice)
		if err != nil {
			err = fmt.Errorf("failed to populate slice with pseudo random data: %w", err)
			return
		}
	}
	return
}

// Checks if all bytes in the array are the same (all zero included)
func isAllIdentical(slice []byte) bool {
	if len(slice) == 0 {
		return true
	}
	first := slice[0]
	for _, b := range slice[1:] {
		if b != first {
			return false
		}
	}
	return true
}

// Generates random integer between two numbers (including the min/max)
func NumberInRange(min, max int) (randomNumber int, err error) {
	if min > max {
		err = fmt.Errorf("min must be less than or equal to max")
		return
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		err = fmt.Errorf("failed reading in range: %w", err)
		return
	}

	randomNumber = int(n.Int64()) + min
	return
}
