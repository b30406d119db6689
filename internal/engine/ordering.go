package engine

import (
	"github.com/hailam/chessplay/internal/board"
)

// Move ordering score bands, highest first: hash move, captures/
// promotions, killers, quiet history, everything else.
const (
	TTMoveScore   = 10000000
	CaptureBase   = 3000
	PromotionBase = 5000
	KillerScore1  = 900000
	KillerScore2  = 800000
)

// MoveOrderer tracks the per-search killer and history-heuristic state
// used to order moves without a full static-exchange evaluation.
type MoveOrderer struct {
	killers [MaxPly][2]board.Move
	history [2][64][64]int
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear resets killers and halves history scores for a new search.
func (mo *MoveOrderer) Clear() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
	for c := range mo.history {
		for i := range mo.history[c] {
			for j := range mo.history[c][i] {
				mo.history[c][i][j] /= 2
			}
		}
	}
}

// ScoreMoves assigns an ordering score to every move in the list.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) []int {
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
	return scores
}

func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	if m.IsCapture(pos) || m.IsPromotion() {
		// Offset keeps every capture/promotion above the killer and
		// history bands and below the hash move.
		const noisyBand = 1000000
		score := noisyBand
		if m.IsPromotion() {
			score += PromotionBase + pieceValues[m.Promotion()]
		}
		if m.IsCapture(pos) {
			mover := pos.PieceAt(m.From())
			var victim board.PieceType
			if m.IsEnPassant() {
				victim = board.Pawn
			} else {
				victim = pos.PieceAt(m.To()).Type()
			}
			score += CaptureBase + pieceValues[victim] - pieceValues[mover.Type()]
		}
		return score
	}

	if m == mo.killers[ply][0] {
		return KillerScore1
	}
	if m == mo.killers[ply][1] {
		return KillerScore2
	}

	return mo.history[pos.SideToMove][m.From()][m.To()]
}

// SortMoves sorts moves by their scores, descending.
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// PickMove moves the best-scoring remaining move to index and swaps its
// score alongside it, giving lazy (as-needed) sorting.
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers records a quiet move that caused a beta cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}
	if mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory rewards a quiet move that caused a beta cutoff, scaling
// the whole table down if any entry grows too large.
func (mo *MoveOrderer) UpdateHistory(side board.Color, m board.Move, depth int) {
	entry := &mo.history[side][m.From()][m.To()]
	*entry += depth * depth
	if *entry > 400000 {
		for c := range mo.history {
			for i := range mo.history[c] {
				for j := range mo.history[c][i] {
					mo.history[c][i][j] /= 2
				}
			}
		}
	}
}
