package testutil

import (
	"math/rand"

	"github.com/rs/zerolog"
)

// NewTestRNG creates a deterministic random number generator for tests
func NewTestRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NopLoggerPtr returns a pointer to a no-op logger, for configs that take one
func NopLoggerPtr() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
