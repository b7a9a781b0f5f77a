package project

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/yappa/internal/core/validation"
)

// =============================================================================
// Resource Limits
// =============================================================================

const (
	MinMemoryBytes = 128 * 1024 * 1024
	MaxMemoryBytes = 4 * 1024 * 1024 * 1024
	MaxTimeout     = 10 * time.Minute
)

// Resources holds the parsed resource limits of a function version.
type Resources struct {
	MemoryBytes int64
	Timeout     time.Duration
}

// ParseResources parses memory ("128m", "1g", "268435456") and timeout
// ("60s", "2m", "30") limits and checks their allowed ranges.
func ParseResources(memory, timeout string) (Resources, error) {
	mem, err := ParseMemory(memory)
	if err != nil {
		return Resources{}, validation.NewValidationError("memory_limit", err.Error(), err)
	}
	if mem < MinMemoryBytes || mem > MaxMemoryBytes {
		return Resources{}, validation.NewValidationError("memory_limit",
			fmt.Sprintf("%s is outside 128m..4g", memory), ErrInvalidLimit)
	}

	dur, err := ParseTimeout(timeout)
	if err != nil {
		return Resources{}, validation.NewValidationError("timeout", err.Error(), err)
	}
	if dur <= 0 || dur > MaxTimeout {
		return Resources{}, validation.NewValidationError("timeout",
			fmt.Sprintf("%s is outside 1s..10m", timeout), ErrInvalidLimit)
	}

	return Resources{MemoryBytes: mem, Timeout: dur}, nil
}

// ParseMemory converts a size with an optional k/m/g suffix into bytes.
func ParseMemory(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "b")
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1024
	case strings.HasSuffix(s, "m"):
		multiplier = 1024 * 1024
	case strings.HasSuffix(s, "g"):
		multiplier = 1024 * 1024 * 1024
	}
	if multiplier != 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, s)
	}
	return n * multiplier, nil
}

// ParseTimeout accepts Go durations or a bare number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, s)
	}
	return d, nil
}
