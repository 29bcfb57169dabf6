// Package errors defines the error taxonomy of archive assembly and a
// collector for the per-entry problems that are absorbed rather than
// propagated.
package errors

import (
	"sync"
)

// Collector records absorbed, non-fatal problems (rejected paths, an
// ignored corrupt archive) for one request. Safe for concurrent use.
type Collector struct {
	warnings []error
	mutex    sync.RWMutex
}

// NewCollector creates a new warning collector
func NewCollector() *Collector {
	return &Collector{
		warnings: make([]error, 0),
	}
}

// Add records a warning. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.warnings = append(c.warnings, err)
}

// Warnings returns a copy of the recorded warnings.
func (c *Collector) Warnings() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.warnings))
	copy(result, c.warnings)
	return result
}

// Count returns the number of recorded warnings.
func (c *Collector) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.warnings)
}

// HasWarnings returns true if anything was absorbed
func (c *Collector) HasWarnings() bool {
	return c.Count() > 0
}
