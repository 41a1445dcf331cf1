// Package system provides the wall clock used by the rate limiter.
package system

import (
	"time"

	"github.com/JakeFAU/webtools/internal/content"
)

var _ content.Clock = Clock{}

// Clock implements content.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
