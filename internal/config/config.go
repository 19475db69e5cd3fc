// Package config loads and validates the application configuration from
// YAML with environment overrides. Configuration errors are fatal: the
// process refuses to serve traffic on a malformed provider or group catalog.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/triage-router/internal/classify"
	"github.com/tributary-ai/triage-router/internal/routing"
	"github.com/tributary-ai/triage-router/internal/scoring"
	"github.com/tributary-ai/triage-router/internal/types"
)

// Config represents the complete application configuration.
type Config struct {
	Server      ServerConfig           `yaml:"server"`
	Quota       QuotaConfig            `yaml:"quota"`
	Providers   ProvidersConfig        `yaml:"providers"`
	Groups      GroupsConfig           `yaml:"groups"`
	Scoring     scoring.Weights        `yaml:"scoring"`
	Balancer    routing.BalancerConfig `yaml:"balancer"`
	Rules       []RuleConfig           `yaml:"rules"`
	Classifiers ClassifiersConfig      `yaml:"classifiers"`
	Logging     LoggingConfig          `yaml:"logging"`
	Security    SecurityConfig         `yaml:"security"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`

	// OpenAPI request validation against docs/openapi.yaml.
	ValidationEnabled bool   `yaml:"validation_enabled"`
	OpenAPISpecPath   string `yaml:"openapi_spec_path"`
}

// QuotaConfig selects and configures the quota ledger backend.
type QuotaConfig struct {
	// Backend is "memory" for single-instance deployments or "redis" for
	// scale-out across processes.
	Backend string `yaml:"backend"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// ProvidersConfig holds the provider catalog and the universal fallback.
type ProvidersConfig struct {
	Catalog []types.Provider `yaml:"catalog"`

	// Fallback names the always-available provider; it must be in the
	// catalog, enabled, and carry no daily limit.
	Fallback string `yaml:"fallback"`
}

// GroupsConfig holds the service-group catalog and the default group used
// by the fixed fallback decision.
type GroupsConfig struct {
	Catalog []types.ServiceGroup `yaml:"catalog"`
	Default string               `yaml:"default"`
}

// RuleConfig is the YAML shape of one routing override rule.
type RuleConfig struct {
	Name          string  `yaml:"name"`
	Priority      int     `yaml:"priority"`
	TargetGroup   string  `yaml:"target_group"`
	MinConfidence float64 `yaml:"min_confidence"`
	Active        bool    `yaml:"active"`

	// Condition: exactly one of these should be set.
	TextContains    []string `yaml:"text_contains,omitempty"`
	Category        string   `yaml:"category,omitempty"`
	RequestPriority string   `yaml:"request_priority,omitempty"`
}

// ClassifiersConfig holds the external classifier backend credentials.
type ClassifiersConfig struct {
	OpenAI    *classify.OpenAIConfig    `yaml:"openai"`
	Anthropic *classify.AnthropicConfig `yaml:"anthropic"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds authentication configuration.
type SecurityConfig struct {
	APIKeys   []string      `yaml:"api_keys"`
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values.
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:            "8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1MB
		OpenAPISpecPath: "docs/openapi.yaml",
	}

	c.Quota = QuotaConfig{
		Backend:   "memory",
		KeyPrefix: "triage:quota:",
	}

	c.Scoring = scoring.DefaultWeights()
	c.Balancer = routing.DefaultBalancerConfig()

	c.Providers = ProvidersConfig{
		Catalog: []types.Provider{
			{
				ID:           "local",
				Enabled:      true,
				CostPerCall:  0,
				DailyLimit:   0,
				QualityScore: 0.6,
				TaskTypes:    []types.TaskType{types.TaskClassification, types.TaskSentiment},
				ChainRank:    0,
			},
			{
				ID:           "openai",
				Enabled:      true,
				CostPerCall:  0.002,
				DailyLimit:   1000,
				QualityScore: 0.85,
				TaskTypes:    []types.TaskType{types.TaskClassification, types.TaskSentiment, types.TaskSummarization, types.TaskGeneration},
				Specialty:    types.TaskClassification,
				ChainRank:    1,
			},
			{
				ID:           "anthropic",
				Enabled:      true,
				CostPerCall:  0.004,
				DailyLimit:   500,
				QualityScore: 0.95,
				TaskTypes:    []types.TaskType{types.TaskClassification, types.TaskSummarization, types.TaskGeneration},
				ChainRank:    2,
			},
		},
		Fallback: "local",
	}

	c.Groups = GroupsConfig{
		Catalog: []types.ServiceGroup{
			{
				ID:                       "general",
				Name:                     "General Support",
				Keywords:                 []string{"question", "help", "account"},
				MaxCapacity:              20,
				Priorities:               []types.Priority{types.PriorityLow, types.PriorityMedium},
				WorkStartHour:            0,
				WorkEndHour:              24,
				EscalationThresholdHours: 24,
			},
		},
		Default: "general",
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		JWTExpiry: 24 * time.Hour,
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads overrides from environment variables.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("TRIAGE_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}
	if level := os.Getenv("TRIAGE_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("TRIAGE_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if backend := os.Getenv("TRIAGE_ROUTER_QUOTA_BACKEND"); backend != "" {
		c.Quota.Backend = backend
	}
	if addr := os.Getenv("TRIAGE_ROUTER_REDIS_ADDR"); addr != "" {
		c.Quota.RedisAddr = addr
	}

	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		if c.Classifiers.OpenAI == nil {
			c.Classifiers.OpenAI = &classify.OpenAIConfig{}
		}
		c.Classifiers.OpenAI.APIKey = openaiKey
	}
	if anthropicKey := os.Getenv("ANTHROPIC_API_KEY"); anthropicKey != "" {
		if c.Classifiers.Anthropic == nil {
			c.Classifiers.Anthropic = &classify.AnthropicConfig{}
		}
		c.Classifiers.Anthropic.APIKey = anthropicKey
	}
	if secret := os.Getenv("TRIAGE_ROUTER_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}
}

// Validate checks the configuration. Any error here is fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Quota.Backend {
	case "memory":
	case "redis":
		if c.Quota.RedisAddr == "" {
			return fmt.Errorf("quota backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("invalid quota backend: %s", c.Quota.Backend)
	}

	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateGroups(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.validateBalancer(); err != nil {
		return err
	}
	return c.validateRules()
}

func (c *Config) validateProviders() error {
	if len(c.Providers.Catalog) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers.Catalog {
		if p.ID == "" {
			return fmt.Errorf("provider id cannot be empty")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider id: %s", p.ID)
		}
		seen[p.ID] = true
		if p.DailyLimit < 0 {
			return fmt.Errorf("provider %s has negative daily limit", p.ID)
		}
		if p.QualityScore < 0 || p.QualityScore > 1 {
			return fmt.Errorf("provider %s quality score must be in [0,1]", p.ID)
		}
		if len(p.TaskTypes) == 0 {
			return fmt.Errorf("provider %s declares no task types", p.ID)
		}
	}

	if c.Providers.Fallback == "" {
		return fmt.Errorf("a fallback provider must be designated")
	}
	for _, p := range c.Providers.Catalog {
		if p.ID != c.Providers.Fallback {
			continue
		}
		if !p.Enabled {
			return fmt.Errorf("fallback provider %s must be enabled", p.ID)
		}
		if !p.Unlimited() {
			return fmt.Errorf("fallback provider %s must have no daily limit", p.ID)
		}
		return nil
	}
	return fmt.Errorf("fallback provider %s is not in the catalog", c.Providers.Fallback)
}

func (c *Config) validateGroups() error {
	if len(c.Groups.Catalog) == 0 {
		return fmt.Errorf("at least one service group must be configured")
	}

	seen := make(map[string]bool)
	for _, g := range c.Groups.Catalog {
		if g.ID == "" {
			return fmt.Errorf("group id cannot be empty")
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate group id: %s", g.ID)
		}
		seen[g.ID] = true
		if g.MaxCapacity < 0 {
			return fmt.Errorf("group %s has negative max capacity", g.ID)
		}
		if g.EscalationThresholdHours <= 0 {
			return fmt.Errorf("group %s needs a positive escalation threshold", g.ID)
		}
		if g.WorkStartHour < 0 || g.WorkStartHour > 23 || g.WorkEndHour < 0 || g.WorkEndHour > 24 {
			return fmt.Errorf("group %s has an invalid working-hour window", g.ID)
		}
		for _, p := range g.Priorities {
			if !types.ValidPriorities[p] {
				return fmt.Errorf("group %s declares unknown priority %q", g.ID, p)
			}
		}
	}

	if c.Groups.Default == "" {
		return fmt.Errorf("a default group must be designated")
	}
	if !seen[c.Groups.Default] {
		return fmt.Errorf("default group %s is not in the catalog", c.Groups.Default)
	}
	return nil
}

func (c *Config) validateBalancer() error {
	b := c.Balancer
	if b.ScoreGap < 0 || b.ScoreGap > 1 {
		return fmt.Errorf("balancer score gap must be in [0,1]")
	}
	if b.SaturationRatio < 0 || b.SaturationRatio > 1 || b.RelievedRatio < 0 || b.RelievedRatio > 1 {
		return fmt.Errorf("balancer workload ratios must be in [0,1]")
	}
	if b.RelievedRatio > b.SaturationRatio {
		return fmt.Errorf("balancer relieved ratio must not exceed the saturation ratio")
	}
	return nil
}

func (c *Config) validateRules() error {
	groupIDs := make(map[string]bool)
	for _, g := range c.Groups.Catalog {
		groupIDs[g.ID] = true
	}

	for _, r := range c.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule name cannot be empty")
		}
		if !groupIDs[r.TargetGroup] {
			return fmt.Errorf("rule %s targets unknown group %s", r.Name, r.TargetGroup)
		}
		conditions := 0
		if len(r.TextContains) > 0 {
			conditions++
		}
		if r.Category != "" {
			conditions++
		}
		if r.RequestPriority != "" {
			conditions++
			if !types.ValidPriorities[types.Priority(r.RequestPriority)] {
				return fmt.Errorf("rule %s uses unknown priority %q", r.Name, r.RequestPriority)
			}
		}
		if conditions != 1 {
			return fmt.Errorf("rule %s must set exactly one condition", r.Name)
		}
	}
	return nil
}

// BuildRules converts the rule configs into a routing rule table.
func (c *Config) BuildRules() *routing.RuleTable {
	rules := make([]routing.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		var condition routing.Condition
		switch {
		case len(rc.TextContains) > 0:
			condition = routing.TextContainsAny(rc.TextContains...)
		case rc.Category != "":
			condition = routing.CategoryIs(rc.Category)
		case rc.RequestPriority != "":
			condition = routing.PriorityIs(types.Priority(rc.RequestPriority))
		}

		rules = append(rules, routing.Rule{
			Name:          rc.Name,
			Priority:      rc.Priority,
			Condition:     condition,
			TargetGroup:   rc.TargetGroup,
			MinConfidence: rc.MinConfidence,
			Active:        rc.Active,
		})
	}
	return routing.NewRuleTable(rules)
}

// GroupIDs returns the configured group ids in catalog order.
func (c *Config) GroupIDs() []string {
	ids := make([]string, 0, len(c.Groups.Catalog))
	for _, g := range c.Groups.Catalog {
		ids = append(ids, g.ID)
	}
	return ids
}

// SaveToFile saves the current configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
