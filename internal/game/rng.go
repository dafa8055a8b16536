package game

import "sort"

// lcg is the fixed 48-bit linear congruential generator used for
// deterministic role assignment. Every peer must use exactly this
// generator and exactly this shuffle algorithm, seeded with exactly the
// same seed, or role assignments will diverge across peers. The constants
// are POSIX drand48's: multiplier 0x5DEECE66D, increment 0xB, modulus
// 2^48.
type lcg struct {
	state uint64
}

const (
	lcgMask = (uint64(1) << 48) - 1
	lcgMult = 0x5DEECE66D
	lcgInc  = 0xB
)

// newLCG seeds the generator: state0 = (seed ^ multiplier) & mask.
func newLCG(seed int64) *lcg {
	return &lcg{state: (uint64(seed) ^ lcgMult) & lcgMask}
}

// next advances the generator and returns the top 32 bits of the new
// 48-bit state as the next sort key.
func (g *lcg) next() uint32 {
	g.state = (g.state*lcgMult + lcgInc) & lcgMask
	return uint32(g.state >> 16)
}

// shuffle produces a key via gen.next() for each element of ids (in
// order), then sorts by key with ties broken by original index (a stable
// sort over ascending keys achieves this, since ids is already visited in
// original order).
func shuffle(ids []int32, seed int64) []int32 {
	gen := newLCG(seed)
	type keyed struct {
		id  int32
		key uint32
	}
	tagged := make([]keyed, len(ids))
	for i, id := range ids {
		tagged[i] = keyed{id: id, key: gen.next()}
	}
	sort.SliceStable(tagged, func(i, j int) bool {
		return tagged[i].key < tagged[j].key
	})
	out := make([]int32, len(tagged))
	for i, t := range tagged {
		out[i] = t.id
	}
	return out
}
