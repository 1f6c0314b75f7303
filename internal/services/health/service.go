// Package health reports whether the API's backing services are reachable.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Check probes one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// Report is the readiness payload. Components maps a dependency name to
// "ok" or the probe error.
type Report struct {
	OK         bool              `json:"ok"`
	Components map[string]string `json:"components,omitempty"`
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Check), timeout: 2 * time.Second}
}

// Register adds or replaces the probe for name.
func (s *Service) Register(name string, check Check) {
	if check == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Status runs every probe concurrently, each under the service timeout.
func (s *Service) Status(ctx context.Context) Report {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make([]Check, len(names))
	sort.Strings(names)
	for i, name := range names {
		checks[i] = s.checks[name]
	}
	s.mu.RUnlock()

	results := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = check(probeCtx)
		}(i, check)
	}
	wg.Wait()

	report := Report{OK: true}
	if len(names) > 0 {
		report.Components = make(map[string]string, len(names))
	}
	for i, name := range names {
		if results[i] != nil {
			report.OK = false
			report.Components[name] = results[i].Error()
			continue
		}
		report.Components[name] = "ok"
	}
	return report
}
