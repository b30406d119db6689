package engine

import "errors"

// Sentinel errors returned by the host-facing API. Each wraps the
// specific failure reported by the underlying board/search layer via
// fmt.Errorf("...: %w", ...) where more context is useful.
var (
	ErrInvalidFEN       = errors.New("invalid FEN")
	ErrIllegalMove      = errors.New("illegal move")
	ErrOutOfRange       = errors.New("square index out of range")
	ErrNoMovesAvailable = errors.New("no legal moves available")
)
