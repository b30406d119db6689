package engine

import (
	"strings"
	"testing"

	"github.com/hailam/chessplay/internal/board"
)

func newTestEngine() *Engine {
	return New(Config{TTSizeMB: 4})
}

func TestSearchFindsMoveFromStart(t *testing.T) {
	eng := newTestEngine()
	res, err := eng.Search(board.StartFEN, 4, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Best == "" {
		t.Fatal("Search returned no best move for starting position")
	}
	if res.Depth != 4 {
		t.Errorf("expected depth 4, got %d", res.Depth)
	}
	if !strings.HasPrefix(res.PV, res.Best) {
		t.Errorf("pv %q does not start with best move %q", res.PV, res.Best)
	}
}

func TestSearchFindsMateInOne(t *testing.T) {
	// Scholar's mate: white to move, Qh5xf7 is mate (f7 covered by Bc4).
	fen := "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4"
	eng := newTestEngine()
	res, err := eng.Search(fen, 3, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Score < MateScore-MateEarlyStopPlies {
		t.Errorf("expected a mate score, got %d", res.Score)
	}
	if res.Best != "h5f7" {
		t.Errorf("expected h5f7, got %s", res.Best)
	}
}

func TestSearchReturnsErrNoMovesOnCheckmate(t *testing.T) {
	// A playable position reports a best move; the position after
	// Scholar's mate (black has just been mated) reports ErrNoMovesAvailable.
	fen := "rnb1kbnr/pppp1ppp/8/4p2Q/4P3/8/PPPP1PPP/RNB1KBNR w KQkq - 2 3"
	eng := newTestEngine()
	res, err := eng.Search(fen, 1, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Best == "" {
		t.Fatal("non-terminal position should still report a best move")
	}

	mated := "r1bqkb1r/pppp1Qpp/2n2n2/4p3/2B1P3/8/PPPP1PPP/RNB1K1NR b KQkq - 0 4"
	pos, err := board.ParseFEN(mated)
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if pos.GenerateLegalMoves().Len() != 0 {
		t.Skip("fixture position is not actually terminal")
	}
	_, err = eng.Search(mated, 1, 0)
	if err != ErrNoMovesAvailable {
		t.Errorf("expected ErrNoMovesAvailable, got %v", err)
	}
}

func TestGetValidMovesFromStart(t *testing.T) {
	eng := newTestEngine()
	moves, err := eng.GetValidMoves(board.StartFEN, board.NewSquare(4, 1)) // e2
	if err != nil {
		t.Fatalf("GetValidMoves: %v", err)
	}
	if len(moves) != 2 {
		t.Errorf("expected 2 destinations for e2 pawn, got %d", len(moves))
	}
}

func TestGetValidMovesEmptySquare(t *testing.T) {
	eng := newTestEngine()
	moves, err := eng.GetValidMoves(board.StartFEN, board.NewSquare(4, 3)) // e4, empty
	if err != nil {
		t.Fatalf("GetValidMoves: %v", err)
	}
	if moves != nil {
		t.Errorf("expected no moves from an empty square, got %v", moves)
	}
}

func TestGetValidMovesOutOfRange(t *testing.T) {
	eng := newTestEngine()
	_, err := eng.GetValidMoves(board.StartFEN, board.Square(64))
	if err == nil {
		t.Fatal("expected an error for an out-of-range square")
	}
}

func TestGetValidMovesInvalidFEN(t *testing.T) {
	eng := newTestEngine()
	_, err := eng.GetValidMoves("not a fen", board.NewSquare(0, 0))
	if err == nil {
		t.Fatal("expected an error for an invalid FEN")
	}
}

func TestApplyMoveLegal(t *testing.T) {
	eng := newTestEngine()
	fen, err := eng.ApplyMove(board.StartFEN, board.NewSquare(4, 1), board.NewSquare(4, 3), "")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if !strings.HasPrefix(fen, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR") {
		t.Errorf("unexpected resulting FEN: %s", fen)
	}
}

func TestApplyMoveIllegalReturnsOriginalFEN(t *testing.T) {
	eng := newTestEngine()
	fen, err := eng.ApplyMove(board.StartFEN, board.NewSquare(4, 1), board.NewSquare(4, 4), "")
	if err != ErrIllegalMove {
		t.Errorf("expected ErrIllegalMove, got %v", err)
	}
	if fen != board.StartFEN {
		t.Errorf("expected original FEN back, got %s", fen)
	}
}

func TestApplyMovePromotion(t *testing.T) {
	fen := "8/P7/8/8/8/8/8/k6K w - - 0 1"
	eng := newTestEngine()
	result, err := eng.ApplyMove(fen, board.NewSquare(0, 6), board.NewSquare(0, 7), "n")
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if !strings.HasPrefix(result, "N7") {
		t.Errorf("expected a knight promotion on a8, got %s", result)
	}
}

func TestSearchWithRepeatedHistoryReturnsMove(t *testing.T) {
	eng := newTestEngine()
	fen := board.StartFEN
	history := strings.Join([]string{board.StartFEN, board.StartFEN}, "\n")
	res, err := eng.SearchWithHistory(fen, 2, 0, history)
	if err != nil {
		t.Fatalf("SearchWithHistory: %v", err)
	}
	if res.Best == "" {
		t.Fatal("expected a best move even with repeated history")
	}
}

func TestSetRootEvalDebugAttachesBreakdown(t *testing.T) {
	eng := newTestEngine()
	eng.SetRootEvalDebug(true)
	res, err := eng.Search(board.StartFEN, 2, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.RootEval) == 0 {
		t.Error("expected a non-empty root_eval breakdown when debug is on")
	}
}

func TestSearchDepthZeroWithTimeBudgetSearchesDeep(t *testing.T) {
	eng := newTestEngine()
	res, err := eng.Search(board.StartFEN, 0, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Depth < 2 {
		t.Errorf("expected to search past depth 1 within a time budget, got %d", res.Depth)
	}
}

func TestSearchDepthZeroNoTimeBudgetSearchesOnePly(t *testing.T) {
	eng := newTestEngine()
	res, err := eng.Search(board.StartFEN, 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Depth != 1 {
		t.Errorf("expected depth 1 with no depth or time budget, got %d", res.Depth)
	}
}
