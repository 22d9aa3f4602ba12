package etc

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nrednav/cuid2"
)

func NewFreshID() string {
	return cuid2.Generate()
}

// NewRunID identifies one pipeline run in logs.
func NewRunID() string {
	return uuid.NewString()
}

// FreshName replaces the base of name with a fresh id, keeping the
// extension, so uploads never collide on the server.
func FreshName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return NewFreshID() + ext
}
