// Package content defines the domain types, classified errors, and shared
// interfaces used by the acquisition, search, and tool layers of webtools.
package content
