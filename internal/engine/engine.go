// Package engine implements the chess search and evaluation engine.
package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/enginelog"
)

// Config configures a new Engine. Mirrors the teacher's constructor-
// argument style (NewTranspositionTable(sizeMB)) rather than a flag or
// env-parsing library.
type Config struct {
	TTSizeMB  int
	DebugEval bool
	Logger    *enginelog.Logger
}

// Engine is a single analysis handle: its own transposition table,
// killer/history tables and repetition state. Two goroutines wanting to
// search concurrently need two Engines — there is no shared mutable
// package state and no internal locking.
type Engine struct {
	tt       *TranspositionTable
	searcher *Searcher
	stopFlag atomic.Bool
	logger   *enginelog.Logger

	debugEval bool
}

// New creates an Engine with its own transposition table sized to cfg.TTSizeMB.
func New(cfg Config) *Engine {
	tt := NewTranspositionTable(cfg.TTSizeMB)
	e := &Engine{
		tt:        tt,
		debugEval: cfg.DebugEval,
		logger:    cfg.Logger,
	}
	e.searcher = NewSearcher(tt, &e.stopFlag)
	return e
}

// SetRootEvalDebug toggles whether Search/SearchWithHistory attach a
// per-legal-move evaluation breakdown to the result.
func (e *Engine) SetRootEvalDebug(on bool) {
	e.debugEval = on
}

// Stop asks any search in progress on this Engine to return as soon as
// it next polls the stop flag.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// GetValidMoves returns every legal destination square for the piece on
// square, including castling and en passant targets. A square holding no
// piece, or a piece of the wrong color, yields an empty (nil) slice with
// no error — only a malformed FEN or an out-of-range square is an error.
func (e *Engine) GetValidMoves(fen string, square board.Square) ([]board.Square, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	if square >= board.NoSquare {
		return nil, fmt.Errorf("%w: square %d", ErrOutOfRange, square)
	}

	piece := pos.PieceAt(square)
	if piece == board.NoPiece || piece.Color() != pos.SideToMove {
		return nil, nil
	}

	legal := pos.GenerateLegalMoves()
	var dests []board.Square
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.From() == square {
			dests = append(dests, m.To())
		}
	}
	return dests, nil
}

// ApplyMove applies the legal move from -> to (with an optional
// promotion piece letter: q/r/b/n, queen if empty) and returns the
// resulting FEN. On an illegal move, out-of-range square, or invalid
// input FEN, it returns the original fen string alongside a
// distinguishable error, matching the original's degrade-gracefully
// contract while staying idiomatic.
func (e *Engine) ApplyMove(fen string, from, to board.Square, promotion string) (string, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return fen, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	if from >= board.NoSquare || to >= board.NoSquare {
		return fen, fmt.Errorf("%w: from=%d to=%d", ErrOutOfRange, from, to)
	}

	move := findLegalMove(pos, from, to, promotion)
	if move == board.NoMove {
		return fen, ErrIllegalMove
	}

	undo := pos.MakeMove(move)
	if !undo.Valid {
		return fen, ErrIllegalMove
	}
	return pos.ToFEN(), nil
}

// findLegalMove looks up the legal move from->to, matching the requested
// promotion piece when the move is a promotion (queen by default).
func findLegalMove(pos *board.Position, from, to board.Square, promotion string) board.Move {
	wantPromo := board.Queen
	if len(promotion) > 0 {
		switch promotion[0] {
		case 'q', 'Q':
			wantPromo = board.Queen
		case 'r', 'R':
			wantPromo = board.Rook
		case 'b', 'B':
			wantPromo = board.Bishop
		case 'n', 'N':
			wantPromo = board.Knight
		}
	}

	legal := pos.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		m := legal.Get(i)
		if m.From() != from || m.To() != to {
			continue
		}
		if m.IsPromotion() && m.Promotion() != wantPromo {
			continue
		}
		return m
	}
	return board.NoMove
}

// SearchResult is the JSON-serializable outcome of Search/SearchWithHistory.
type SearchResult struct {
	Depth    int             `json:"depth"`
	Nodes    uint64          `json:"nodes"`
	TimeMS   int64           `json:"time_ms"`
	NPS      uint64          `json:"nps"`
	Score    int             `json:"score"`
	Best     string          `json:"best"`
	PV       string          `json:"pv"`
	RepAvoid bool            `json:"rep_avoid"`
	RootEval []RootEvalEntry `json:"root_eval,omitempty"`
}

// Search finds the best move for fen within the given depth cap and/or
// millisecond time budget. depth == 0 with timeMS > 0 searches to depth
// 64; depth == 0 with timeMS == 0 searches a single ply.
func (e *Engine) Search(fen string, depth int, timeMS int) (SearchResult, error) {
	return e.SearchWithHistory(fen, depth, timeMS, "")
}

// SearchWithHistory is Search with repetition detection seeded from
// history: newline-separated FEN strings, oldest first, folded into the
// engine's repetition table alongside the root position and capped to
// the most recent 128 positions.
func (e *Engine) SearchWithHistory(fen string, depth int, timeMS int, history string) (SearchResult, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return SearchResult{}, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}

	maxDepth := depth
	if maxDepth <= 0 {
		if timeMS > 0 {
			maxDepth = 64
		} else {
			maxDepth = 1
		}
	}

	e.stopFlag.Store(false)
	e.tt.NewSearch()
	e.searcher.SetRootHistory(buildHistory(history, pos.Hash))

	timeLimit := time.Duration(timeMS) * time.Millisecond
	result := e.searcher.IterativeDeepen(pos, maxDepth, timeLimit)

	if e.logger != nil {
		e.logger.Printf("depth=%d score=%d nodes=%d best=%s", result.Depth, result.Score, result.Nodes, result.BestMove.String())
	}

	out := SearchResult{
		Depth:    result.Depth,
		Nodes:    result.Nodes,
		TimeMS:   result.Elapsed.Milliseconds(),
		Score:    result.Score,
		RepAvoid: result.RepAvoid,
	}
	if result.Elapsed > 0 {
		out.NPS = uint64(float64(result.Nodes) * float64(time.Second) / float64(result.Elapsed))
	}

	if result.BestMove != board.NoMove {
		out.Best = result.BestMove.String()
		out.PV = pvString(pos, e.tt, result.BestMove, result.Depth)
	}

	if e.debugEval {
		out.RootEval = RootEvalBreakdown(pos)
	}

	if result.BestMove == board.NoMove {
		return out, ErrNoMovesAvailable
	}
	return out, nil
}

// buildHistory hashes each FEN line (oldest first), caps the result to
// the most recent 128 entries, and appends the root hash.
func buildHistory(history string, rootHash uint64) []uint64 {
	var hashes []uint64
	for _, line := range strings.Split(history, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pos, err := board.ParseFEN(line)
		if err != nil {
			continue
		}
		hashes = append(hashes, pos.Hash)
	}
	if len(hashes) > 128 {
		hashes = hashes[len(hashes)-128:]
	}
	return append(hashes, rootHash)
}

// pvString renders firstMove followed by the chain of best moves stored in
// the transposition table for each successive position, in UCI form. The
// walk stops after maxLen moves, at a missing or illegal TT move, or on a
// repeated position.
func pvString(pos *board.Position, tt *TranspositionTable, firstMove board.Move, maxLen int) string {
	if maxLen <= 0 {
		return firstMove.String()
	}

	walker := pos.Copy()
	var moves []string
	seen := make(map[uint64]bool)
	next := firstMove

	for i := 0; i < maxLen; i++ {
		if seen[walker.Hash] {
			break
		}
		seen[walker.Hash] = true

		mv := next
		next = board.NoMove
		if mv == board.NoMove {
			entry, ok := tt.Probe(walker.Hash)
			if !ok || entry.BestMove == board.NoMove {
				break
			}
			mv = entry.BestMove
		}
		if !walker.IsLegal(mv) {
			break
		}

		moves = append(moves, mv.String())
		undo := walker.MakeMove(mv)
		if !undo.Valid {
			break
		}
	}

	if len(moves) == 0 {
		return firstMove.String()
	}
	return strings.Join(moves, " ")
}
