package hash

import "crypto/md5"

// MD5 of multiple byte slices combined in their input order.
// Used for key derivation and packet checksums, never for secrecy.
func MD5(inputs ...[]byte) (sum []byte) {
	hasher := md5.New()
	for _, input := range inputs {
		hasher.Write(input) // hash.Hash writes never fail
	}
	sum = hasher.Sum(nil)
	return
}
