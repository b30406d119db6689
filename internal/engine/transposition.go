package engine

import "github.com/hailam/chessplay/internal/board"

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Key      uint64
	BestMove board.Move
	Score    int32
	Depth    int
	Flag     TTFlag
	Gen      uint8
}

// ttBucketSize is the number of entries probed/replaced as a group.
// A bucketed table tolerates hash-index collisions between unrelated
// positions without needing chaining: a lookup scans the whole bucket,
// and a store picks the best victim inside it.
const ttBucketSize = 4

// TranspositionTable is a bucketed hash table for storing search results.
type TranspositionTable struct {
	entries []TTEntry
	buckets uint64
	mask    uint64
	gen     uint8
}

// NewTranspositionTable creates a transposition table sized to fit within
// sizeMB megabytes (capped at 256MB), rounded down to a power-of-two
// number of entries that is itself a multiple of the bucket size.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB > 256 {
		sizeMB = 256
	}
	if sizeMB <= 0 {
		sizeMB = 1
	}

	const entrySize = 40 // bytes budgeted per entry; TTEntry itself is 32 bytes on 64-bit targets
	n := uint64(sizeMB) * 1024 * 1024 / entrySize
	if n < ttBucketSize {
		n = ttBucketSize
	}

	size := roundDownToPowerOf2(n)
	for size > ttBucketSize && size%ttBucketSize != 0 {
		size >>= 1
	}
	if size < ttBucketSize {
		size = ttBucketSize
	}

	return &TranspositionTable{
		entries: make([]TTEntry, size),
		buckets: size / ttBucketSize,
		mask:    size/ttBucketSize - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

func (tt *TranspositionTable) bucketStart(hash uint64) int {
	bucket := hash & tt.mask
	return int(bucket) * ttBucketSize
}

// Probe looks up a position in the transposition table. Returns the
// entry and true if a slot in the bucket matches the full key.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	start := tt.bucketStart(hash)
	for i := start; i < start+ttBucketSize; i++ {
		entry := tt.entries[i]
		if entry.Depth == 0 {
			continue
		}
		if entry.Key == hash {
			return entry, true
		}
	}
	return TTEntry{}, false
}

// Store saves a position in the transposition table. Replacement
// preference within a bucket: an empty slot first; then the same key if
// it isn't both deeper and from the current generation; otherwise the
// slot with the oldest generation, breaking ties by shallowest depth.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move) {
	start := tt.bucketStart(hash)

	replaceIdx := -1
	var oldestAge uint8
	var shallowestDepth = int(^uint(0) >> 1)

	for i := start; i < start+ttBucketSize; i++ {
		entry := tt.entries[i]
		if entry.Depth == 0 {
			replaceIdx = i
			break
		}
		if entry.Key == hash {
			if entry.Depth > depth && entry.Gen == tt.gen {
				return
			}
			replaceIdx = i
			break
		}

		age := tt.gen - entry.Gen
		if replaceIdx == -1 || age > oldestAge || (age == oldestAge && entry.Depth < shallowestDepth) {
			replaceIdx = i
			oldestAge = age
			shallowestDepth = entry.Depth
		}
	}

	if replaceIdx == -1 {
		replaceIdx = start
	}

	tt.entries[replaceIdx] = TTEntry{
		Key:      hash,
		BestMove: bestMove,
		Score:    int32(score),
		Depth:    depth,
		Flag:     flag,
		Gen:      tt.gen,
	}
}

// NewSearch increments the generation counter for a new search. Entries
// from prior generations become preferred replacement targets.
func (tt *TranspositionTable) NewSearch() {
	tt.gen++
}

// Clear empties the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.gen = 0
}

// HashFull returns the permille (parts per thousand) of the table in use
// by the current generation, sampled over the first 1000 entries.
func (tt *TranspositionTable) HashFull() int {
	sampleSize := 1000
	if uint64(sampleSize) > uint64(len(tt.entries)) {
		sampleSize = len(tt.entries)
	}

	used := 0
	for i := 0; i < sampleSize; i++ {
		if tt.entries[i].Depth > 0 && tt.entries[i].Gen == tt.gen {
			used++
		}
	}
	return (used * 1000) / sampleSize
}

// AdjustScoreFromTT un-rebases a mate score read from the table back to
// the current search's ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score >= MateThreshold {
		return score - ply
	}
	if score <= -MateThreshold {
		return score + ply
	}
	return score
}

// AdjustScoreToTT rebases a mate score to be ply-independent before
// storing it, since the same mate is a different number of plies away
// depending on where in the tree it was found.
func AdjustScoreToTT(score int, ply int) int {
	if score >= MateThreshold {
		return score + ply
	}
	if score <= -MateThreshold {
		return score - ply
	}
	return score
}
