package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"FinanceFlow/internal/domain"
)

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "anthropic" {
		// the defaults target Groq
		if c.LLM.BaseURL == groqBaseURL {
			c.LLM.BaseURL = ""
		}
		if c.LLM.Model == groqModel {
			c.LLM.Model = anthropicModel
		}
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheNone
	}

	origins := c.Server.CORSOrigins[:0]
	for _, o := range c.Server.CORSOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.CORSOrigins = origins

	p := &c.Pipeline
	p.Level = strings.ToLower(strings.TrimSpace(p.Level))
	if p.Level == "" {
		p.Level = domain.LevelIntermediate
	}
	p.FetchConcurrency = atLeast(p.FetchConcurrency, 1)
	p.LookupConcurrency = atLeast(p.LookupConcurrency, 1)
	p.EnrichConcurrency = atLeast(p.EnrichConcurrency, 1)
	p.MinBodyChars = atLeast(p.MinBodyChars, 0)
	if p.MaxBodyChars < p.MinBodyChars {
		p.MaxBodyChars = p.MinBodyChars
	}
	if p.RefreshTimeout <= 0 {
		p.RefreshTimeout = 90 * time.Second
	}

	if c.WorkingSet.TTL < time.Second {
		c.WorkingSet.TTL = time.Second
	}
	if c.WorkingSet.RefreshInterval < 0 {
		c.WorkingSet.RefreshInterval = 0
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.Quotes.Timeout <= 0 {
		c.Quotes.Timeout = 5 * time.Second
	}

	for i := range c.Sources {
		s := &c.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Scanner = strings.ToLower(strings.TrimSpace(s.Scanner))
		if s.Scanner == "" {
			s.Scanner = "rss"
		}
		if s.Limit <= 0 {
			s.Limit = c.Pipeline.MaxItems
		}
	}
}

func atLeast(v, floor int) int {
	if v < floor {
		return floor
	}
	return v
}

// Validate reports configuration that cannot be run at all. Missing
// credentials for optional collaborators are not errors; they disable the feature.
func (c Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}

	for _, o := range c.Server.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("server.corsOrigins: %q must be \"*\" or start with http:// or https://", o))
		}
	}

	if !domain.ValidLevel(c.Pipeline.Level) {
		errs = append(errs, fmt.Errorf("pipeline.level %q is not one of beginner, intermediate, advanced", c.Pipeline.Level))
	}

	switch c.Cache.Backend {
	case CacheSQLite, CachePostgres, CacheRedis, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
	}

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	seen := map[string]struct{}{}
	for i, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("sources[%d] %s: url is required", i, s.Name))
		}
		if _, dup := seen[s.Name]; dup && s.Name != "" {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %s", i, s.Name))
		}
		seen[s.Name] = struct{}{}
	}

	return errors.Join(errs...)
}
