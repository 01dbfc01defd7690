// internal/deck/deck.go
package deck

import (
	"math/rand"
	"sort"
)

// Size is the number of distinct card values in the game pool. Cards run from
// 1 to Size inclusive.
const Size = 100

// Pool returns every card value from 1 to Size that does not appear in any of
// the exclude sets, in ascending order. The exclude sets are typically the
// hands currently held and the cards already played in a room.
func Pool(exclude ...[]int) []int {
	taken := make(map[int]bool)
	for _, set := range exclude {
		for _, v := range set {
			taken[v] = true
		}
	}
	pool := make([]int, 0, Size)
	for v := 1; v <= Size; v++ {
		if !taken[v] {
			pool = append(pool, v)
		}
	}
	return pool
}

// Draw removes up to n values from pool uniformly at random without
// replacement. It returns the drawn values sorted ascending plus the remaining
// pool. If the pool holds fewer than n values the draw simply comes up short;
// running the pool dry is not an error.
func Draw(pool []int, n int) (drawn, rest []int) {
	rest = pool
	for i := 0; i < n && len(rest) > 0; i++ {
		j := rand.Intn(len(rest))
		drawn = append(drawn, rest[j])
		rest[j] = rest[len(rest)-1]
		rest = rest[:len(rest)-1]
	}
	sort.Ints(drawn)
	return drawn, rest
}
