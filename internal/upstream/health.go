package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const Version = "1.0.0"

// Checker is anything with a health probe: collaborator clients, the
// database, the KV store.
type Checker interface {
	ServiceName() string
	Health(ctx context.Context) error
}

type CheckFunc struct {
	Name  string
	Check func(ctx context.Context) error
}

func (f CheckFunc) ServiceName() string              { return f.Name }
func (f CheckFunc) Health(ctx context.Context) error { return f.Check(ctx) }

type HealthReport struct {
	Status       string            `json:"status"`
	Services     map[string]string `json:"services"`
	ResponseTime string            `json:"response_time"`
	Version      string            `json:"version"`
}

type Prober struct {
	checks  []Checker
	timeout time.Duration
}

func NewProber(timeout time.Duration, checks ...Checker) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{checks: checks, timeout: timeout}
}

// Add registers more checks. Not safe once Check is being called.
func (p *Prober) Add(checks ...Checker) {
	p.checks = append(p.checks, checks...)
}

// Check probes every dependency concurrently. Any failure makes the
// overall status "degraded".
func (p *Prober) Check(ctx context.Context) HealthReport {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]string, len(p.checks))
	var wg sync.WaitGroup
	for i, c := range p.checks {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			if err := c.Health(ctx); err != nil {
				results[i] = "error: " + err.Error()
				return
			}
			results[i] = "healthy"
		}(i, c)
	}
	wg.Wait()

	report := HealthReport{
		Status:   "healthy",
		Services: make(map[string]string, len(p.checks)),
		Version:  Version,
	}
	for i, c := range p.checks {
		report.Services[c.ServiceName()] = results[i]
		if results[i] != "healthy" {
			report.Status = "degraded"
		}
	}
	report.ResponseTime = fmt.Sprintf("%.3fs", time.Since(start).Seconds())
	return report
}
