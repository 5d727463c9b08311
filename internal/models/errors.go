package models

import "errors"

var (
	ErrLoad       = errors.New("load error")
	ErrChunk      = errors.New("chunk error")
	ErrProvider   = errors.New("provider error")
	ErrIndex      = errors.New("index error")
	ErrGeneration = errors.New("generation error")

	ErrInvalidConfig = errors.New("invalid config")

	ErrUnauthorized      = errors.New("unauthorized")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrMalformedResponse = errors.New("malformed response")

	ErrIndexNotBuilt     = errors.New("index not built")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// ErrorKind returns a short label for the outermost error kind in err's chain
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrLoad):
		return "load"
	case errors.Is(err, ErrChunk):
		return "chunk"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrIndex):
		return "index"
	case errors.Is(err, ErrInvalidConfig):
		return "config"
	default:
		return "internal"
	}
}
