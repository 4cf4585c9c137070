package config

import (
	"fmt"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validPolicies = map[string]bool{
	"hold":        true,
	"interpolate": true,
}

const (
	minPollInterval = 5 * time.Millisecond
	maxPollInterval = 5 * time.Second
)

// Validate checks the config for invalid values and returns all errors found.
// Out-of-range values are clamped to safe defaults so the caller may log the
// errors as warnings and continue.
func (c *Config) Validate() []error {
	var errs []error

	if c.PollInterval < minPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval %s is below minimum %s, clamping", c.PollInterval, minPollInterval))
		c.PollInterval = minPollInterval
	} else if c.PollInterval > maxPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval %s exceeds maximum %s, clamping", c.PollInterval, maxPollInterval))
		c.PollInterval = maxPollInterval
	}

	policy := strings.ToLower(strings.TrimSpace(c.NormalizerPolicy))
	if !validPolicies[policy] {
		errs = append(errs, fmt.Errorf("normalizer_policy %q is not one of hold, interpolate; using hold", c.NormalizerPolicy))
		policy = "hold"
	}
	c.NormalizerPolicy = policy

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid, using info", c.LogLevel))
		c.LogLevel = "info"
	}

	if len(c.SearchPaths) == 0 {
		errs = append(errs, fmt.Errorf("search_paths is empty, using defaults"))
		c.SearchPaths = DefaultSearchPaths()
	}

	seen := make(map[string]bool, len(c.EnabledProviders))
	deduped := c.EnabledProviders[:0]
	for _, name := range c.EnabledProviders {
		name = strings.TrimSpace(name)
		if name == "" {
			errs = append(errs, fmt.Errorf("enabled_providers contains an empty entry"))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("enabled_providers lists %q more than once", name))
			continue
		}
		seen[name] = true
		deduped = append(deduped, name)
	}
	c.EnabledProviders = deduped

	return errs
}
