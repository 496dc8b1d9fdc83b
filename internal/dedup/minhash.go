package dedup

import "github.com/minio/highwayhash"

// Signature is a MinHash signature: one minimum hash value per
// permutation.
type Signature []uint64

// permutationKeys lazily derives cfg.NumPerm distinct 32-byte HighwayHash
// keys from a fixed seed, giving each permutation an independent hash
// function. The seed is fixed so signatures are stable across runs.
var permutationKeyCache = map[int][][32]byte{}

func permutationKeys(numPerm int) [][32]byte {
	if keys, ok := permutationKeyCache[numPerm]; ok {
		return keys
	}
	keys := make([][32]byte, numPerm)
	var seed uint64 = 0x9E3779B97F4A7C15
	for i := range keys {
		var key [32]byte
		for b := 0; b < 4; b++ {
			seed = seed*6364136223846793005 + 1442695040888963407 + uint64(i)
			for j := 0; j < 8; j++ {
				key[b*8+j] = byte(seed >> (8 * j))
			}
		}
		keys[i] = key
	}
	permutationKeyCache[numPerm] = keys
	return keys
}

// Sign builds a MinHash signature over tokens using numPerm independent
// HighwayHash permutations: for each permutation, the signature entry is
// the minimum hash of any token, the standard MinHash construction.
func Sign(tokens []string, numPerm int) Signature {
	keys := permutationKeys(numPerm)
	sig := make(Signature, numPerm)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for _, tok := range tokens {
		b := []byte(tok)
		for i, key := range keys {
			h := highwayhash.Sum64(b, key[:])
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// EstimateJaccard returns the fraction of permutation slots at which a
// and b agree, the MinHash estimator of the Jaccard similarity between
// the two signatures' underlying token sets.
func EstimateJaccard(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
