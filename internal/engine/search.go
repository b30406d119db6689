package engine

import (
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// Search score constants.
const (
	InfScore           = 32000
	MateScore          = 30000
	MateThreshold      = 29000
	MateEarlyStopPlies = 10
	MaxPly             = 128
)

func mateScore(ply int) int {
	return MateScore - ply
}

// clampEval keeps a static evaluation from ever colliding with the
// reserved mate-score range.
func clampEval(score int) int {
	if score > MateThreshold-1 {
		return MateThreshold - 1
	}
	if score < -MateThreshold+1 {
		return -MateThreshold + 1
	}
	return score
}

// PVTable stores the principal variation found at each ply.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher runs iterative-deepening negamax/PVS over a single position.
// Every Searcher owns its own transposition probe context, killer/
// history tables (via MoveOrderer) and repetition-count map; running two
// searches concurrently means using two Searchers.
type Searcher struct {
	pos     *board.Position
	tt      *TranspositionTable
	orderer *MoveOrderer

	nodes    uint64
	stopFlag *atomic.Bool

	repCounts map[uint64]int

	pv PVTable

	startTime         time.Time
	timeLimit         time.Duration
	timeCheckInterval time.Duration
	lastTimeCheck     time.Time
}

// NewSearcher creates a Searcher sharing the given transposition table.
func NewSearcher(tt *TranspositionTable, stopFlag *atomic.Bool) *Searcher {
	return &Searcher{
		tt:        tt,
		orderer:   NewMoveOrderer(),
		stopFlag:  stopFlag,
		repCounts: make(map[uint64]int),
	}
}

// Nodes returns the number of nodes searched since the last
// IterativeDeepen call started.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// SetRootHistory seeds the repetition table with prior-game position
// hashes (oldest first), capped to the most recent 128 as the caller's
// history builder is expected to have already done.
func (s *Searcher) SetRootHistory(hashes []uint64) {
	s.repCounts = make(map[uint64]int, len(hashes)+1)
	for _, h := range hashes {
		s.repCounts[h]++
	}
}

func (s *Searcher) historyCount(hash uint64) int {
	return s.repCounts[hash]
}

func (s *Searcher) historyPush(hash uint64) {
	s.repCounts[hash]++
}

func (s *Searcher) historyPop(hash uint64) {
	if c := s.repCounts[hash]; c > 1 {
		s.repCounts[hash] = c - 1
	} else {
		delete(s.repCounts, hash)
	}
}

// shouldStop polls the shared stop flag on every call and, when a time
// budget is set, the wall clock — the clock only every 256 nodes so the
// check itself never dominates search time.
func (s *Searcher) shouldStop() bool {
	if s.stopFlag != nil && s.stopFlag.Load() {
		return true
	}
	if s.timeLimit <= 0 {
		return false
	}
	if s.nodes&255 != 0 {
		return false
	}
	now := time.Now()
	if now.Sub(s.lastTimeCheck) < s.timeCheckInterval {
		return false
	}
	s.lastTimeCheck = now
	if now.Sub(s.startTime) >= s.timeLimit {
		if s.stopFlag != nil {
			s.stopFlag.Store(true)
		}
		return true
	}
	return false
}

// quiescence searches captures (and, outside of check, quiet checking
// moves) to the point of a quiet position, avoiding the horizon effect.
func (s *Searcher) quiescence(alpha, beta, ply int, hash uint64) int {
	if s.stopFlag != nil && s.stopFlag.Load() {
		return 0
	}
	if s.pos.HalfMoveClock >= 100 {
		return 0
	}
	if s.historyCount(hash) >= 3 {
		return 0
	}

	s.nodes++
	if s.shouldStop() {
		return 0
	}

	if entry, ok := s.tt.Probe(hash); ok {
		val := AdjustScoreFromTT(int(entry.Score), ply)
		switch entry.Flag {
		case TTExact:
			return val
		case TTLowerBound:
			if val >= beta {
				return val
			}
		case TTUpperBound:
			if val <= alpha {
				return val
			}
		}
	}

	standPat := clampEval(EvaluateFast(s.pos))
	if standPat >= beta {
		return beta
	}

	inCheck := s.pos.InCheck()
	// Delta pruning: not even winning a queen would lift the score to alpha.
	if !inCheck && standPat+QueenValue < alpha {
		return alpha
	}
	if standPat > alpha {
		alpha = standPat
	}

	var moves *board.MoveList
	if inCheck {
		moves = s.pos.GenerateLegalMoves()
	} else {
		moves = s.pos.GenerateCaptures()
		for _, m := range quietChecksFrom(s.pos) {
			moves.Add(m)
		}
	}

	if moves.Len() == 0 {
		if inCheck {
			return -mateScore(ply)
		}
		return standPat
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}
		PickMove(moves, scores, i)
		move := moves.Get(i)

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		nextHash := s.pos.Hash
		s.historyPush(nextHash)
		score := -s.quiescence(-beta, -alpha, ply+1, nextHash)
		s.historyPop(nextHash)
		s.pos.UnmakeMove(move, undo)

		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}
		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// quietChecksFrom returns the legal quiet moves that give check, used by
// quiescence to avoid missing forced mates hiding just past the horizon.
func quietChecksFrom(pos *board.Position) []board.Move {
	legal := pos.GenerateLegalMoves()
	var out []board.Move
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.IsCapture(pos) || m.IsPromotion() {
			continue
		}
		undo := pos.MakeMove(m)
		if !undo.Valid {
			continue
		}
		givesCheck := pos.InCheck()
		pos.UnmakeMove(m, undo)
		if givesCheck {
			out = append(out, m)
		}
	}
	return out
}

// negamax implements alpha-beta negamax with PVS re-search, a one-ply
// check extension, and single-ply late-move reduction.
func (s *Searcher) negamax(depth, ply int, alpha, beta int, hash uint64) int {
	if s.stopFlag != nil && s.stopFlag.Load() {
		return 0
	}
	if s.pos.HalfMoveClock >= 100 {
		return 0
	}
	if s.historyCount(hash) >= 3 {
		return 0
	}

	s.nodes++
	if s.shouldStop() {
		return 0
	}

	s.pv.length[ply] = ply

	ttEntry, found := s.tt.Probe(hash)
	var ttMove board.Move
	if found {
		ttMove = ttEntry.BestMove
		if ttEntry.Depth >= depth {
			val := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return val
			case TTLowerBound:
				if val >= beta {
					return val
				}
			case TTUpperBound:
				if val <= alpha {
					return val
				}
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(alpha, beta, ply, hash)
	}

	inCheck := s.pos.InCheck()
	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -mateScore(ply)
		}
		return 0
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	origAlpha := alpha
	best := -InfScore
	bestMove := board.NoMove
	first := true

	for i := 0; i < moves.Len(); i++ {
		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}
		PickMove(moves, scores, i)
		move := moves.Get(i)
		isQuiet := !move.IsCapture(s.pos) && !move.IsPromotion()

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		givesCheck := s.pos.InCheck()
		nextHash := s.pos.Hash
		s.historyPush(nextHash)

		extend := 0
		if givesCheck && depth <= 3 {
			extend = 1
		}
		baseDepth := depth - 1 + extend
		useLMR := !first && ply > 0 && baseDepth >= 3 && i > 3 && isQuiet && !inCheck && !givesCheck

		var score int
		switch {
		case first:
			score = -s.negamax(baseDepth, ply+1, -beta, -alpha, nextHash)
		case useLMR:
			score = -s.negamax(baseDepth-1, ply+1, -(alpha + 1), -alpha, nextHash)
			if score > alpha {
				score = -s.negamax(baseDepth, ply+1, -(alpha + 1), -alpha, nextHash)
				if score > alpha && score < beta {
					score = -s.negamax(baseDepth, ply+1, -beta, -alpha, nextHash)
				}
			}
		default:
			score = -s.negamax(baseDepth, ply+1, -(alpha + 1), -alpha, nextHash)
			if score > alpha && score < beta {
				score = -s.negamax(baseDepth, ply+1, -beta, -alpha, nextHash)
			}
		}

		s.historyPop(nextHash)
		s.pos.UnmakeMove(move, undo)
		first = false

		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}

		if score > best {
			best = score
			bestMove = move
		}
		if score > alpha {
			alpha = score

			s.pv.moves[ply][ply] = move
			for j := ply + 1; j < s.pv.length[ply+1]; j++ {
				s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
			}
			s.pv.length[ply] = s.pv.length[ply+1]
		}
		if alpha >= beta {
			if isQuiet {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(s.pos.SideToMove, move, depth)
			}
			break
		}
	}

	if best == -InfScore {
		best = clampEval(Evaluate(s.pos))
	}

	if s.stopFlag == nil || !s.stopFlag.Load() {
		var flag TTFlag
		switch {
		case best <= origAlpha:
			flag = TTUpperBound
		case best >= beta:
			flag = TTLowerBound
		default:
			flag = TTExact
		}
		s.tt.Store(hash, depth, AdjustScoreToTT(best, ply), flag, bestMove)
	}

	return best
}

// rootResult is the outcome of searching one iterative-deepening depth
// from the root.
type rootResult struct {
	score    int
	move     board.Move
	repAvoid bool
}

// searchDepth searches the root to the given depth within [alpha, beta],
// tracking both the overall best move and the best move that neither
// draws by repetition nor loses, substituting the latter for the former
// when they differ (rep_avoid).
func (s *Searcher) searchDepth(depth, alpha, beta int, rootHash uint64, pvHint board.Move) rootResult {
	if s.pos.HalfMoveClock >= 100 {
		return rootResult{}
	}
	if depth == 0 {
		return rootResult{score: s.quiescence(-InfScore, InfScore, 0, rootHash)}
	}

	ttEntry, found := s.tt.Probe(rootHash)
	var ttMove board.Move
	if found {
		ttMove = ttEntry.BestMove
	}
	hashHint := pvHint
	if ttMove != board.NoMove {
		hashHint = ttMove
	}

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if s.pos.InCheck() {
			return rootResult{score: -mateScore(0)}
		}
		return rootResult{}
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, 0, hashHint)

	origAlpha := alpha
	var best board.Move
	bestScore := -InfScore
	bestIsRep := false
	var bestNonRep board.Move
	bestNonRepScore := -InfScore
	repAvoidUsed := false

	first := true
	for i := 0; i < moves.Len(); i++ {
		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}
		if s.shouldStop() {
			break
		}
		PickMove(moves, scores, i)
		move := moves.Get(i)

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		nextHash := s.pos.Hash
		isRepDraw := s.historyCount(nextHash) >= 2
		s.historyPush(nextHash)

		var score int
		if first {
			score = -s.negamax(depth-1, 1, -beta, -alpha, nextHash)
		} else {
			score = -s.negamax(depth-1, 1, -(alpha + 1), -alpha, nextHash)
			if score > alpha && score < beta {
				score = -s.negamax(depth-1, 1, -beta, -alpha, nextHash)
			}
		}

		s.historyPop(nextHash)
		s.pos.UnmakeMove(move, undo)
		first = false

		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}

		if score > bestScore {
			bestScore = score
			best = move
			bestIsRep = isRepDraw
		}
		if score > alpha {
			alpha = score

			s.pv.moves[0][0] = move
			for j := 1; j < s.pv.length[1]; j++ {
				s.pv.moves[0][j] = s.pv.moves[1][j]
			}
			s.pv.length[0] = s.pv.length[1]
		}
		if !isRepDraw && score >= 0 && score > bestNonRepScore {
			bestNonRepScore = score
			bestNonRep = move
		}
		if alpha >= beta {
			break
		}
	}

	stopped := s.stopFlag != nil && s.stopFlag.Load()
	if !stopped {
		var flag TTFlag
		switch {
		case alpha <= origAlpha:
			flag = TTUpperBound
		case alpha >= beta:
			flag = TTLowerBound
		default:
			flag = TTExact
		}
		s.tt.Store(rootHash, depth, AdjustScoreToTT(alpha, 0), flag, best)
	}

	chosenScore, chosenMove := bestScore, best
	if !stopped && bestIsRep && bestNonRep != board.NoMove {
		chosenScore, chosenMove = bestNonRepScore, bestNonRep
		repAvoidUsed = true
	}

	const rootContempt = 10
	const rootContemptThreshold = 15
	if !stopped && bestIsRep && abs(chosenScore) < rootContemptThreshold {
		chosenScore -= rootContempt
	}

	return rootResult{score: chosenScore, move: chosenMove, repAvoid: repAvoidUsed}
}

// GetPV returns the principal variation from the most recently completed
// iterative-deepening depth.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// IterativeDeepenResult is the outcome of a full iterative-deepening run.
type IterativeDeepenResult struct {
	Depth    int
	Score    int
	BestMove board.Move
	Nodes    uint64
	Elapsed  time.Duration
	RepAvoid bool
}

// timeCheckInterval picks how often shouldStop rechecks the wall clock,
// tighter for short budgets so a 200ms search doesn't overrun by a second.
func timeCheckInterval(limit time.Duration) time.Duration {
	switch {
	case limit <= 0:
		return 0
	case limit < time.Second:
		return limit
	case limit < 2*time.Second:
		return time.Second
	default:
		return 2 * time.Second
	}
}

// IterativeDeepen runs iterative deepening from depth 1 up to maxDepth (or
// until the time budget expires), using aspiration windows after the
// first depth and stopping early once a forced mate is found within
// MateEarlyStopPlies.
func (s *Searcher) IterativeDeepen(pos *board.Position, maxDepth int, timeLimit time.Duration) IterativeDeepenResult {
	s.pos = pos
	s.nodes = 0
	s.orderer.Clear()
	s.pv = PVTable{}

	s.startTime = time.Now()
	s.timeLimit = timeLimit
	s.timeCheckInterval = timeCheckInterval(timeLimit)
	s.lastTimeCheck = s.startTime

	rootHash := pos.Hash

	const (
		useAspiration = true
		aspWindow     = 50
		aspMaxIters   = 6
	)

	var result IterativeDeepenResult
	var lastScore int
	var pvHint board.Move

	for d := 1; d <= maxDepth; d++ {
		var r rootResult

		if useAspiration && d > 1 {
			window := aspWindow
			alpha := maxInt(lastScore-window, -InfScore)
			beta := minInt(lastScore+window, InfScore)
			attempts := 0

			for {
				r = s.searchDepth(d, alpha, beta, rootHash, pvHint)
				if s.stopFlag != nil && s.stopFlag.Load() {
					break
				}
				if r.score <= alpha {
					alpha = maxInt(alpha-window, -InfScore)
					window *= 2
				} else if r.score >= beta {
					beta = minInt(beta+window, InfScore)
					window *= 2
				} else {
					break
				}
				attempts++
				if attempts >= aspMaxIters {
					alpha, beta = -InfScore, InfScore
					r = s.searchDepth(d, alpha, beta, rootHash, pvHint)
					break
				}
			}
		} else {
			r = s.searchDepth(d, -InfScore, InfScore, rootHash, pvHint)
		}

		if s.stopFlag != nil && s.stopFlag.Load() {
			break
		}

		result.Depth = d
		result.Score = r.score
		result.BestMove = r.move
		result.RepAvoid = r.repAvoid
		lastScore = r.score
		if r.move != board.NoMove {
			pvHint = r.move
		}

		if r.score >= MateScore-MateEarlyStopPlies {
			break
		}
		if timeLimit > 0 && time.Since(s.startTime) >= timeLimit {
			break
		}
	}

	result.Nodes = s.nodes
	result.Elapsed = time.Since(s.startTime)
	return result
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
