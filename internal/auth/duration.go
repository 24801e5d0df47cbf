package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxTokenLifetime bounds how far ahead a token expiry may be set. Tokens
// that should outlive it are issued with "never".
const MaxTokenLifetime = 365 * 24 * time.Hour

var ErrInvalidExpiry = errors.New("invalid token expiry")

var dayUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// TokenExpiry turns an expires_in value into an absolute expiry relative to
// now. "never" yields nil. Accepted lifetimes are whole days or weeks ("30d",
// "2w") or a Go duration ("12h", "90m"), up to MaxTokenLifetime.
func TokenExpiry(expiresIn string, now time.Time) (*time.Time, error) {
	expiresIn = strings.TrimSpace(expiresIn)
	if expiresIn == "never" {
		return nil, nil
	}

	lifetime, err := parseLifetime(expiresIn)
	if err != nil {
		return nil, err
	}
	if lifetime <= 0 || lifetime > MaxTokenLifetime {
		return nil, fmt.Errorf("%w: %q must be between 1m and %dd", ErrInvalidExpiry, expiresIn, int(MaxTokenLifetime.Hours()/24))
	}
	t := now.Add(lifetime)
	return &t, nil
}

func parseLifetime(s string) (time.Duration, error) {
	for suffix, unit := range dayUnits {
		if n, ok := strings.CutSuffix(s, suffix); ok {
			count, err := strconv.Atoi(n)
			if err != nil {
				break
			}
			return time.Duration(count) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q (use never, 30d, 2w or 12h)", ErrInvalidExpiry, s)
	}
	return d, nil
}
