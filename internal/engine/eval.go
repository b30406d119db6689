// Package engine implements the chess search and evaluation engine.
package engine

import "github.com/hailam/chessplay/internal/board"

// Tapered evaluation: every term is scored once for the middlegame and
// once for the endgame, then blended by game phase. MaxPhase corresponds
// to a full complement of minor/major pieces on both sides.
const MaxPhase = 24

var phaseValue = [6]int{0, 1, 1, 2, 4, 0} // Pawn, Knight, Bishop, Rook, Queen, King

var mgValue = [6]int{100, 320, 330, 500, 900, 0}
var egValue = [6]int{120, 300, 320, 510, 900, 0}

// pieceValues gives static material values used by move ordering and
// quiescence delta pruning, independent of the tapered mg/eg split.
var pieceValues = [6]int{100, 320, 330, 500, 900, 0}

const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
)

var mgPST = [6][64]int{
	mgPSTPawn, mgPSTKnight, mgPSTBishop, mgPSTRook, mgPSTQueen, mgPSTKing,
}
var egPST = [6][64]int{
	egPSTPawn, egPSTKnight, egPSTBishop, egPSTRook, egPSTQueen, egPSTKing,
}

var mgPSTPawn = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, -10, -10, 10, 10, 5,
	5, 5, 10, 15, 15, 10, 5, 5,
	0, 0, 10, 20, 20, 10, 0, 0,
	5, 5, 10, 25, 25, 10, 5, 5,
	10, 10, 20, 30, 30, 20, 10, 10,
	50, 50, 50, 50, 50, 50, 50, 50,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var egPSTPawn = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 5, 5, 5, 5, 5, 5, 5,
	10, 10, 10, 10, 10, 10, 10, 10,
	20, 20, 20, 20, 20, 20, 20, 20,
	40, 40, 40, 40, 40, 40, 40, 40,
	70, 70, 70, 70, 70, 70, 70, 70,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var mgPSTKnight = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var egPSTKnight = [64]int{
	-40, -30, -20, -20, -20, -20, -30, -40,
	-30, -10, 0, 0, 0, 0, -10, -30,
	-20, 0, 10, 10, 10, 10, 0, -20,
	-20, 5, 10, 15, 15, 10, 5, -20,
	-20, 0, 10, 15, 15, 10, 0, -20,
	-20, 5, 10, 10, 10, 10, 5, -20,
	-30, -10, 0, 5, 5, 0, -10, -30,
	-40, -30, -20, -20, -20, -20, -30, -40,
}

var mgPSTBishop = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var egPSTBishop = [64]int{
	-10, -5, -5, -5, -5, -5, -5, -10,
	-5, 5, 0, 0, 0, 0, 5, -5,
	-5, 0, 10, 10, 10, 10, 0, -5,
	-5, 5, 10, 15, 15, 10, 5, -5,
	-5, 0, 10, 15, 15, 10, 0, -5,
	-5, 5, 10, 10, 10, 10, 5, -5,
	-5, 5, 0, 0, 0, 0, 5, -5,
	-10, -5, -5, -5, -5, -5, -5, -10,
}

var mgPSTRook = [64]int{
	0, 0, 5, 10, 10, 5, 0, 0,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	5, 10, 10, 10, 10, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var egPSTRook = [64]int{
	0, 0, 5, 10, 10, 5, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	0, 0, 5, 5, 5, 5, 0, 0,
	0, 0, 5, 5, 5, 5, 0, 0,
	0, 0, 5, 5, 5, 5, 0, 0,
	0, 0, 5, 5, 5, 5, 0, 0,
	0, 0, 5, 10, 10, 5, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var mgPSTQueen = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var egPSTQueen = [64]int{
	-10, -5, -5, -5, -5, -5, -5, -10,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 5, 5, 5, 5, 0, -5,
	-5, 0, 5, 5, 5, 5, 0, -5,
	-5, 0, 5, 5, 5, 5, 0, -5,
	-5, 0, 5, 5, 5, 5, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-10, -5, -5, -5, -5, -5, -5, -10,
}

var mgPSTKing = [64]int{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-40, -50, -50, -60, -60, -50, -50, -40,
	-50, -60, -60, -70, -70, -60, -60, -50,
	-50, -60, -60, -70, -70, -60, -60, -50,
	-40, -50, -50, -60, -60, -50, -50, -40,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
}

var egPSTKing = [64]int{
	-10, -5, 0, 5, 5, 0, -5, -10,
	-5, 5, 10, 15, 15, 10, 5, -5,
	0, 10, 20, 25, 25, 20, 10, 0,
	5, 15, 25, 30, 30, 25, 15, 5,
	5, 15, 25, 30, 30, 25, 15, 5,
	0, 10, 20, 25, 25, 20, 10, 0,
	-5, 5, 10, 15, 15, 10, 5, -5,
	-10, -5, 0, 5, 5, 0, -5, -10,
}

// blend combines middlegame and endgame scores by the current phase.
func blend(mg, eg, phase int) int {
	return (mg*phase + eg*(MaxPhase-phase)) / MaxPhase
}

func computePhase(pos *board.Position) int {
	phase := 0
	for c := board.White; c <= board.Black; c++ {
		phase += pos.Pieces[c][board.Knight].PopCount() * phaseValue[board.Knight]
		phase += pos.Pieces[c][board.Bishop].PopCount() * phaseValue[board.Bishop]
		phase += pos.Pieces[c][board.Rook].PopCount() * phaseValue[board.Rook]
		phase += pos.Pieces[c][board.Queen].PopCount() * phaseValue[board.Queen]
	}
	if phase > MaxPhase {
		phase = MaxPhase
	}
	return phase
}

// addPieceScores accumulates material and PST contributions for one
// piece type's bitboard, from white's point of view: black pieces are
// subtracted, with their PST looked up on the mirrored square.
func addPieceScores(materialMG, materialEG, pstMG, pstEG *int, bb board.Bitboard, pt board.PieceType, white bool) {
	sign := 1
	if !white {
		sign = -1
	}
	for bb != 0 {
		sq := bb.PopLSB()
		psq := sq
		if !white {
			psq = sq.Mirror()
		}
		*materialMG += sign * mgValue[pt]
		*materialEG += sign * egValue[pt]
		*pstMG += sign * mgPST[pt][psq]
		*pstEG += sign * egPST[pt][psq]
	}
}

const (
	doubledPawnMG    = -12
	doubledPawnEG    = -8
	isolatedPawnMG   = -15
	isolatedPawnEG   = -10
	connectedPassedMG = 8
	connectedPassedEG = 15
	spacePawnMG      = 5
)

var passedBonusMG = [8]int{0, 5, 10, 20, 30, 40, 60, 0}
var passedBonusEG = [8]int{0, 10, 20, 40, 60, 80, 120, 0}

// pawnFeatures scores doubled, isolated, passed (with connected-passed
// and space) pawns for one color, returning (mg, eg) from that color's
// own point of view.
func pawnFeatures(pos *board.Position, c board.Color) (int, int) {
	pawns := pos.Pieces[c][board.Pawn]
	enemyPawns := pos.Pieces[c.Other()][board.Pawn]

	var mg, eg int

	for file := 0; file < 8; file++ {
		fileMask := board.FileMask[file]
		onFile := pawns & fileMask
		count := onFile.PopCount()
		if count > 1 {
			extra := count - 1
			mg += extra * doubledPawnMG
			eg += extra * doubledPawnEG
		}
		if onFile != 0 {
			adj := pawns & adjFileMask(file)
			if adj == 0 {
				mg += count * isolatedPawnMG
				eg += count * isolatedPawnEG
			}
		}
	}

	var passed board.Bitboard
	bb := pawns
	for bb != 0 {
		sq := bb.PopLSB()
		mask := passedMask(c, sq)
		if enemyPawns&mask == 0 {
			passed = passed.Set(sq)
			r := sq.RelativeRank(c)
			if r < 0 {
				r = 0
			}
			if r > 7 {
				r = 7
			}
			mg += passedBonusMG[r]
			eg += passedBonusEG[r]
		}
	}

	connected := passed & (passed.East() | passed.West())
	connectedCount := connected.PopCount()
	mg += connectedCount * connectedPassedMG
	eg += connectedCount * connectedPassedEG

	var spaceMask board.Bitboard
	if c == board.White {
		spaceMask = board.Rank5 | board.Rank6
	} else {
		spaceMask = board.Rank4 | board.Rank3
	}
	mg += (pawns & spaceMask).PopCount() * spacePawnMG

	return mg, eg
}

func adjFileMask(file int) board.Bitboard {
	var mask board.Bitboard
	if file > 0 {
		mask |= board.FileMask[file-1]
	}
	if file < 7 {
		mask |= board.FileMask[file+1]
	}
	return mask
}

// passedMask returns the squares in front of sq (and its adjacent files)
// that an enemy pawn would need to occupy to stop the pawn on sq from
// being passed.
func passedMask(c board.Color, sq board.Square) board.Bitboard {
	file := sq.File()
	files := board.FileMask[file] | adjFileMask(file)
	var ahead board.Bitboard
	if c == board.White {
		for r := sq.Rank() + 1; r < 8; r++ {
			ahead |= board.RankMask[r]
		}
	} else {
		for r := sq.Rank() - 1; r >= 0; r-- {
			ahead |= board.RankMask[r]
		}
	}
	return files & ahead
}

func pawnStructureScore(pos *board.Position) (int, int) {
	wmg, weg := pawnFeatures(pos, board.White)
	bmg, beg := pawnFeatures(pos, board.Black)
	return wmg - bmg, weg - beg
}

const (
	kingPressureMG    = 8
	kingPressureEG    = 3
	pawnShieldMG      = 12
	pawnShieldEG      = 4
	pawnFileHalfOpenMG = 6
	pawnFileOpenMG    = 10
)

// attacksForColor returns the union of every square attacked by color c,
// used to measure pressure on the opposing king zone.
func attacksForColor(pos *board.Position, c board.Color) board.Bitboard {
	occ := pos.AllOccupied
	attacks := board.KingAttacks(pos.KingSquare[c])

	pawns := pos.Pieces[c][board.Pawn]
	if c == board.White {
		attacks |= pawns.NorthWest() | pawns.NorthEast()
	} else {
		attacks |= pawns.SouthWest() | pawns.SouthEast()
	}

	knights := pos.Pieces[c][board.Knight]
	for knights != 0 {
		sq := knights.PopLSB()
		attacks |= board.KnightAttacks(sq)
	}
	bishops := pos.Pieces[c][board.Bishop]
	for bishops != 0 {
		sq := bishops.PopLSB()
		attacks |= board.BishopAttacks(sq, occ)
	}
	rooks := pos.Pieces[c][board.Rook]
	for rooks != 0 {
		sq := rooks.PopLSB()
		attacks |= board.RookAttacks(sq, occ)
	}
	queens := pos.Pieces[c][board.Queen]
	for queens != 0 {
		sq := queens.PopLSB()
		attacks |= board.QueenAttacks(sq, occ)
	}
	return attacks
}

// kingSafetyFor scores king-zone attacker pressure, pawn shield gaps,
// and open/half-open files near the king, for color c.
func kingSafetyFor(pos *board.Position, c board.Color) (int, int) {
	kingSq := pos.KingSquare[c]
	enemyAttacks := attacksForColor(pos, c.Other())
	pressure := (enemyAttacks & board.KingZone(kingSq)).PopCount()
	mg := -pressure * kingPressureMG
	eg := -pressure * kingPressureEG

	pawns := pos.Pieces[c][board.Pawn]
	enemyPawns := pos.Pieces[c.Other()][board.Pawn]
	file := kingSq.File()
	shieldFiles := board.FileMask[file] | adjFileMask(file)
	var shieldRanks board.Bitboard
	if c == board.White {
		shieldRanks = board.Rank2 | board.Rank3
	} else {
		shieldRanks = board.Rank7 | board.Rank6
	}
	shieldMask := shieldFiles & shieldRanks
	expected := 3
	if file == 0 || file == 7 {
		expected = 2
	}
	shieldCount := (pawns & shieldMask).PopCount()
	missing := expected - shieldCount
	if missing > 0 {
		mg -= missing * pawnShieldMG
		eg -= missing * pawnShieldEG
	}

	for df := -1; df <= 1; df++ {
		f := file + df
		if f < 0 || f > 7 {
			continue
		}
		fmask := board.FileMask[f]
		if pawns&fmask == 0 {
			if enemyPawns&fmask == 0 {
				mg -= pawnFileOpenMG
			} else {
				mg -= pawnFileHalfOpenMG
			}
		}
	}

	return mg, eg
}

func kingSafetyScore(pos *board.Position) (int, int) {
	wmg, weg := kingSafetyFor(pos, board.White)
	bmg, beg := kingSafetyFor(pos, board.Black)
	return wmg - bmg, weg - beg
}

// Breakdown holds the per-term contribution to a position's evaluation,
// each already blended by phase and signed relative to the side to move.
type Breakdown struct {
	Material int
	PST      int
	Pawn     int
	King     int
	Total    int
}

func (b Breakdown) negate() Breakdown {
	return Breakdown{
		Material: -b.Material,
		PST:      -b.PST,
		Pawn:     -b.Pawn,
		King:     -b.King,
		Total:    -b.Total,
	}
}

// EvaluateBreakdown scores pos term-by-term, relative to the side to
// move.
func EvaluateBreakdown(pos *board.Position) Breakdown {
	var materialMG, materialEG, pstMG, pstEG int

	for pt := board.Pawn; pt <= board.King; pt++ {
		addPieceScores(&materialMG, &materialEG, &pstMG, &pstEG, pos.Pieces[board.White][pt], pt, true)
		addPieceScores(&materialMG, &materialEG, &pstMG, &pstEG, pos.Pieces[board.Black][pt], pt, false)
	}

	pawnMG, pawnEG := pawnStructureScore(pos)
	kingMG, kingEG := kingSafetyScore(pos)

	phase := computePhase(pos)
	material := blend(materialMG, materialEG, phase)
	pst := blend(pstMG, pstEG, phase)
	pawn := blend(pawnMG, pawnEG, phase)
	king := blend(kingMG, kingEG, phase)

	total := material + pst + pawn + king
	sign := 1
	if pos.SideToMove == board.Black {
		sign = -1
	}

	return Breakdown{
		Material: material * sign,
		PST:      pst * sign,
		Pawn:     pawn * sign,
		King:     king * sign,
		Total:    total * sign,
	}
}

// Evaluate scores pos relative to the side to move, in centipawns.
func Evaluate(pos *board.Position) int {
	return EvaluateBreakdown(pos).Total
}

// EvaluateFast scores material and piece-square tables only, skipping
// the pawn-structure and king-safety terms. Used in quiescence search
// where the cheaper, noisier estimate is an acceptable tradeoff for
// speed.
func EvaluateFast(pos *board.Position) int {
	var materialMG, materialEG, pstMG, pstEG int

	for pt := board.Pawn; pt <= board.King; pt++ {
		addPieceScores(&materialMG, &materialEG, &pstMG, &pstEG, pos.Pieces[board.White][pt], pt, true)
		addPieceScores(&materialMG, &materialEG, &pstMG, &pstEG, pos.Pieces[board.Black][pt], pt, false)
	}

	phase := computePhase(pos)
	material := blend(materialMG, materialEG, phase)
	pst := blend(pstMG, pstEG, phase)

	total := material + pst
	if pos.SideToMove == board.Black {
		total = -total
	}
	return total
}

// RootEvalEntry is one move's post-move evaluation breakdown, used by
// the root-eval debug surface.
type RootEvalEntry struct {
	Move     string  `json:"move"`
	Total    int     `json:"total"`
	Material int     `json:"material"`
	PST      int     `json:"pst"`
	Pawn     int     `json:"pawn"`
	King     int     `json:"king"`
}

// RootEvalBreakdown evaluates every legal move from pos one ply deep,
// reporting each resulting breakdown from the mover's point of view.
func RootEvalBreakdown(pos *board.Position) []RootEvalEntry {
	moves := pos.GenerateLegalMoves()
	entries := make([]RootEvalEntry, 0, moves.Len())

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		bd := EvaluateBreakdown(pos).negate()
		pos.UnmakeMove(m, undo)

		entries = append(entries, RootEvalEntry{
			Move:     m.String(),
			Total:    bd.Total,
			Material: bd.Material,
			PST:      bd.PST,
			Pawn:     bd.Pawn,
			King:     bd.King,
		})
	}

	return entries
}
