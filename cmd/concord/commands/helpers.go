package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/routing"
	"github.com/concordhq/concord/pkg/contract"
)

// loadConfig reads the configured file, falling back to the built-in defaults
// when it does not exist. An unreadable or invalid file is always an error.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// buildRouter assembles a router from configuration: user rules first, then
// the built-in pattern table, with any threshold overrides applied.
func buildRouter(cfg *config.Config) (*routing.Router, error) {
	opts := routing.Options{
		Graph:      cfg.DependencyGraph(),
		Keywords:   cfg.ContentKeywords(),
		AgentTypes: cfg.AgentTypes(),
		Thresholds: routing.DefaultThresholds(),
	}

	if rc := cfg.Routing; rc != nil {
		opts.Explicit = rc.Explicit
		opts.Shared = rc.Shared
		opts.Fallback = rc.FallbackAgent

		var rules []routing.Rule
		for _, r := range rc.Rules {
			rule, err := routing.NewRule(r.Pattern, r.Agents, r.Confidence, routing.OriginManual)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
		if len(rules) > 0 {
			opts.Rules = append(rules, routing.DefaultRules()...)
		}

		if t := rc.Thresholds; t != nil {
			if t.LearnedMin != nil {
				opts.Thresholds.LearnedMin = *t.LearnedMin
			}
			if t.ContentCap != nil {
				opts.Thresholds.ContentCap = *t.ContentCap
			}
			if t.ContentMin != nil {
				opts.Thresholds.ContentMin = *t.ContentMin
			}
			if t.InheritFactor != nil {
				opts.Thresholds.InheritFactor = *t.InheritFactor
			}
			if t.ExportMin != nil {
				opts.Thresholds.ExportMin = *t.ExportMin
			}
			if t.LowConfidence != nil {
				opts.Thresholds.LowConfidence = *t.LowConfidence
			}
			if t.MinConfidence != nil {
				opts.Thresholds.MinConfidence = *t.MinConfidence
			}
		}
	}

	return routing.New(opts), nil
}

// openClient connects to the session store for the configured session.
func openClient(cfg *config.Config) (*contract.Client, error) {
	redisOpts := &redis.Options{Addr: "localhost:6379"}
	if cfg.Redis != nil {
		if cfg.Redis.Addr != "" {
			redisOpts.Addr = cfg.Redis.Addr
		}
		redisOpts.Password = cfg.Redis.Password
		redisOpts.DB = cfg.Redis.DB
	}
	return contract.NewClient(redisOpts, cfg.Session)
}

// loadContractsArg loads a name → definition map either from a JSON file or,
// when the path is empty, from the session store.
func loadContractsArg(ctx context.Context, cfg *config.Config, path string) (map[string]string, error) {
	if path == "" {
		client, err := openClient(cfg)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return client.AllContracts(ctx)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contracts file: %w", err)
	}
	var contracts map[string]string
	if err := json.Unmarshal(data, &contracts); err != nil {
		return nil, fmt.Errorf("failed to parse contracts file: %w", err)
	}
	return contracts, nil
}
