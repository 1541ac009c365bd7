// Package health runs dependency checks for the health endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

const DefaultTimeout = 5 * time.Second

var ErrUnknownComponent = errors.New("unknown component")

// Check returns nil when the dependency is usable.
type Check func(ctx context.Context) error

type Result struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
}

type Report struct {
	Service       string    `json:"service"`
	Component     string    `json:"component,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	OverallStatus Status    `json:"overall_status"`
	Uptime        string    `json:"uptime"`
	Checks        []Result  `json:"checks"`
}

func (r Report) Healthy() bool {
	return r.OverallStatus == StatusHealthy
}

type namedCheck struct {
	name  string
	check Check
}

// Checker holds the registered checks and the components that group them.
// It is safe to run from concurrent requests once registration is done.
type Checker struct {
	service    string
	timeout    time.Duration
	start      time.Time
	now        func() time.Time
	checks     []namedCheck
	components map[string][]string
	mu         sync.Mutex
}

func New(service string) *Checker {
	return &Checker{
		service:    service,
		timeout:    DefaultTimeout,
		start:      time.Now(),
		now:        func() time.Time { return time.Now().UTC() },
		components: map[string][]string{},
	}
}

// WithTimeout bounds each check individually.
func (c *Checker) WithTimeout(d time.Duration) *Checker {
	c.timeout = d
	return c
}

// Register adds a check and lists it under each of the given components.
func (c *Checker) Register(name string, check Check, components ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, namedCheck{name: name, check: check})
	for _, component := range components {
		c.components[component] = append(c.components[component], name)
	}
}

func (c *Checker) Components() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes every registered check.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	checks := slices.Clone(c.checks)
	c.mu.Unlock()
	return c.run(ctx, "", checks)
}

// RunComponent executes only the checks registered under component.
func (c *Checker) RunComponent(ctx context.Context, component string) (Report, error) {
	c.mu.Lock()
	names, ok := c.components[component]
	var checks []namedCheck
	for _, nc := range c.checks {
		if slices.Contains(names, nc.name) {
			checks = append(checks, nc)
		}
	}
	c.mu.Unlock()
	if !ok {
		return Report{}, fmt.Errorf("%s: %w", component, ErrUnknownComponent)
	}
	return c.run(ctx, component, checks), nil
}

func (c *Checker) run(ctx context.Context, component string, checks []namedCheck) Report {
	results := make([]Result, len(checks))
	var g errgroup.Group
	for i, nc := range checks {
		g.Go(func() error {
			results[i] = c.runOne(ctx, nc)
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, result := range results {
		if result.Status != StatusHealthy {
			overall = StatusUnhealthy
		}
	}
	return Report{
		Service:       c.service,
		Component:     component,
		Timestamp:     c.now(),
		OverallStatus: overall,
		Uptime:        time.Since(c.start).Round(time.Second).String(),
		Checks:        results,
	}
}

func (c *Checker) runOne(ctx context.Context, nc namedCheck) (result Result) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	result = Result{Name: nc.name, Status: StatusHealthy}
	defer func() {
		if rec := recover(); rec != nil {
			result.Status = StatusUnhealthy
			result.Message = fmt.Sprintf("check panicked: %v", rec)
		}
		result.DurationMS = time.Since(start).Milliseconds()
		if result.Status != StatusHealthy {
			slog.Warn("health check failed", "check", nc.name, "message", result.Message)
		}
	}()

	if err := nc.check(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
