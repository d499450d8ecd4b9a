package health

import "sync"

// Check is a single readiness check. A nil return means the check passes.
type Check func() error

// Checker runs named readiness checks in a thread-safe manner. Checks are
// registered once at wiring time and evaluated on every readiness probe.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
	order  []string
}

// NewChecker creates an empty readiness checker
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]Check),
	}
}

// Register adds a named check, replacing any existing check with that name
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.checks[name]; !exists {
		c.order = append(c.order, name)
	}
	c.checks[name] = check
}

// Names returns the registered check names in registration order
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Run evaluates every registered check. Each check yields a Status: healthy
// with message "pass", or unhealthy with a sanitized "fail: <reason>"
// message. Readiness is the aggregate of all check statuses.
func (c *Checker) Run() (results map[string]Status, ready bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results = make(map[string]Status, len(c.checks))
	subs := make([]Status, 0, len(c.checks))

	for _, name := range c.order {
		var status Status
		if err := c.checks[name](); err != nil {
			status = NewUnhealthy(name, "fail: "+sanitizeMessage(err.Error()))
		} else {
			status = NewHealthy(name, "pass")
		}
		results[name] = status
		subs = append(subs, status)
	}
	return results, Aggregate("readiness", subs).IsHealthy()
}
