package main

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// GenerateID creates a short unique identifier for pipelines and reports.
//
// # Description
//
// Generates a 16-character hex identifier from crypto/rand. Used to
// correlate log lines belonging to one rollback invocation or one
// monitor tick.
//
// # Outputs
//
//   - string: Unique ID, e.g. "a1b2c3d4e5f67890"
//
// # Limitations
//
//   - Not a UUID; shorter for log readability
func GenerateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000")))[:16]
	}
	return hex.EncodeToString(b)
}
