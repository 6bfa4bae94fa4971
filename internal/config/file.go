package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	ProjectsRoot string   `yaml:"projects_root"`
	WorktreesDir string   `yaml:"worktrees_dir"`
	SourceDir    string   `yaml:"source_dir"`
	BinDir       string   `yaml:"bin_dir"`
	Delegate     []string `yaml:"delegate"`
	Sync         struct {
		FreshFor string `yaml:"fresh_for"`
	} `yaml:"sync"`
	Idle struct {
		Poll   string `yaml:"poll"`
		Recent string `yaml:"recent"`
		Quiet  string `yaml:"quiet"`
	} `yaml:"idle"`
	Watch struct {
		Interval string `yaml:"interval"`
		Rules    []struct {
			Name  string   `yaml:"name"`
			Match string   `yaml:"match"`
			Keys  []string `yaml:"keys"`
		} `yaml:"rules"`
	} `yaml:"watch"`
	Send struct {
		EnterDelay string `yaml:"enter_delay"`
	} `yaml:"send"`
}

// Load returns the defaults for env overlaid with <data>/config.yaml when it
// exists. Environment overrides win over the file.
func Load(env Env) (Config, error) {
	cfg := FromEnv(env)
	raw, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := apply(&cfg, raw, strings.TrimSpace(env.Delegate) != ""); err != nil {
		return Config{}, fmt.Errorf("%s: %w", cfg.FilePath, err)
	}
	return cfg, nil
}

func apply(cfg *Config, raw []byte, delegateFromEnv bool) error {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	setPath := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = filepath.Clean(ExpandHome(v, cfg.Home))
		}
	}
	sourceBefore := cfg.SourceDir
	setPath(&cfg.ProjectsRoot, fc.ProjectsRoot)
	setPath(&cfg.WorktreesDir, fc.WorktreesDir)
	setPath(&cfg.SourceDir, fc.SourceDir)
	setPath(&cfg.BinDir, fc.BinDir)

	if !delegateFromEnv {
		if len(fc.Delegate) > 0 {
			cfg.Delegate = make([]string, 0, len(fc.Delegate))
			for _, part := range fc.Delegate {
				cfg.Delegate = append(cfg.Delegate, ExpandHome(part, cfg.Home))
			}
		} else if cfg.SourceDir != sourceBefore {
			cfg.Delegate = []string{"python3", filepath.Join(cfg.SourceDir, "lib", "a_main.py")}
		}
	}

	durations := []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&cfg.Sync.FreshFor, fc.Sync.FreshFor, "sync.fresh_for"},
		{&cfg.Idle.Poll, fc.Idle.Poll, "idle.poll"},
		{&cfg.Idle.Recent, fc.Idle.Recent, "idle.recent"},
		{&cfg.Idle.Quiet, fc.Idle.Quiet, "idle.quiet"},
		{&cfg.Watch.Interval, fc.Watch.Interval, "watch.interval"},
		{&cfg.Send.EnterDelay, fc.Send.EnterDelay, "send.enter_delay"},
	}
	for _, d := range durations {
		v := strings.TrimSpace(d.raw)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive", d.key)
		}
		*d.dst = parsed
	}

	if len(fc.Watch.Rules) > 0 {
		rules := make([]PromptRule, 0, len(fc.Watch.Rules))
		for i, r := range fc.Watch.Rules {
			if strings.TrimSpace(r.Match) == "" || len(r.Keys) == 0 {
				return fmt.Errorf("watch.rules[%d]: match and keys are required", i)
			}
			name := strings.TrimSpace(r.Name)
			if name == "" {
				name = fmt.Sprintf("rule-%d", i)
			}
			rules = append(rules, PromptRule{Name: name, Match: r.Match, Keys: append([]string(nil), r.Keys...)})
		}
		cfg.Watch.Rules = rules
	}
	return nil
}
