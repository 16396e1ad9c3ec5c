// backend/src/services/reporter.go
package services

import "github.com/username/centavo/backend/src/logger"

// SlogReporter routes unexpected failures to the structured log. Swapping in
// an external error tracker means implementing ErrorReporter and changing
// one line in main.
type SlogReporter struct{}

func NewSlogReporter() SlogReporter { return SlogReporter{} }

func (SlogReporter) Report(err error, subsystem, operation string) {
	if err == nil {
		return
	}
	logger.L.Error("Unexpected failure", "subsystem", subsystem, "operation", operation, "error", err)
}
