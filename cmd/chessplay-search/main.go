// Command chessplay-search is a minimal CLI front end exercising the
// engine's four host-facing entry points: get valid moves, apply a
// move, and search, with or without repetition history.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/hailam/chessplay/internal/board"
	"github.com/hailam/chessplay/internal/engine"
	"github.com/hailam/chessplay/internal/enginelog"
)

func main() {
	fen := flag.String("fen", board.StartFEN, "position to analyze, in FEN")
	depth := flag.Int("depth", 0, "search depth cap (0 = up to depth 64 with a time budget, 1 ply without)")
	moveTimeMS := flag.Int("movetime", 1000, "time budget in milliseconds (0 = unbounded by time)")
	ttMB := flag.Int("hash", 32, "transposition table size in MB")
	debugEval := flag.Bool("debug-eval", false, "attach a per-move root evaluation breakdown")
	verbose := flag.Bool("v", false, "log one line per finished search (final depth, score, nodes, best move) to stderr")
	getMoves := flag.String("moves", "", "instead of searching, list legal destinations for this square (e.g. e2)")
	applyMove := flag.String("apply", "", "instead of searching, apply this move (e.g. e2e4 or e7e8q) and print the resulting FEN")
	historyFile := flag.String("history", "", "file of newline-separated FEN strings to seed repetition detection")
	flag.Parse()

	cfg := engine.Config{TTSizeMB: *ttMB, DebugEval: *debugEval}
	if *verbose {
		cfg.Logger = enginelog.New(os.Stderr)
	}
	eng := engine.New(cfg)

	switch {
	case *getMoves != "":
		runGetValidMoves(eng, *fen, *getMoves)
	case *applyMove != "":
		runApplyMove(eng, *fen, *applyMove)
	default:
		runSearch(eng, *fen, *depth, *moveTimeMS, *historyFile)
	}
}

func runGetValidMoves(eng *engine.Engine, fen, squareStr string) {
	sq, err := parseSquare(squareStr)
	if err != nil {
		log.Fatalf("invalid square %q: %v", squareStr, err)
	}
	dests, err := eng.GetValidMoves(fen, sq)
	if err != nil {
		log.Fatalf("get valid moves: %v", err)
	}
	uci := make([]string, len(dests))
	for i, d := range dests {
		uci[i] = d.String()
	}
	fmt.Println(strings.Join(uci, " "))
}

func runApplyMove(eng *engine.Engine, fen, moveStr string) {
	from, to, promo, err := parseMove(moveStr)
	if err != nil {
		log.Fatalf("invalid move %q: %v", moveStr, err)
	}
	result, err := eng.ApplyMove(fen, from, to, promo)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	fmt.Println(result)
}

func runSearch(eng *engine.Engine, fen string, depth, moveTimeMS int, historyFile string) {
	history := ""
	if historyFile != "" {
		data, err := os.ReadFile(historyFile)
		if err != nil {
			log.Fatalf("reading history file: %v", err)
		}
		history = string(data)
	}

	result, err := eng.SearchWithHistory(fen, depth, moveTimeMS, history)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("encoding result: %v", err)
	}
}

// parseSquare accepts algebraic notation (e.g. "e2") or a bare integer
// index (0-63, a1=0).
func parseSquare(s string) (board.Square, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return board.Square(n), nil
	}
	if len(s) != 2 {
		return 0, fmt.Errorf("expected algebraic square like e2, got %q", s)
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("square out of bounds: %q", s)
	}
	return board.NewSquare(file, rank), nil
}

// parseMove accepts UCI move notation: "e2e4" or "e7e8q".
func parseMove(s string) (from, to board.Square, promotion string, err error) {
	if len(s) < 4 {
		return 0, 0, "", fmt.Errorf("expected UCI move like e2e4, got %q", s)
	}
	from, err = parseSquare(s[0:2])
	if err != nil {
		return 0, 0, "", err
	}
	to, err = parseSquare(s[2:4])
	if err != nil {
		return 0, 0, "", err
	}
	if len(s) > 4 {
		promotion = s[4:5]
	}
	return from, to, promotion, nil
}
