// Package config assembles runtime settings for the service. Environment
// variables are the primary source; an optional YAML file named by
// BASTION_CONFIG overrides the environment for deployments that prefer
// files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds global settings for the risk service. All settings can be
// configured via environment variables or programmatically.
type Config struct {
	// === Service ===
	ListenAddr  string `yaml:"listen_addr"`
	LogLevel    string `yaml:"log_level"`
	ServiceName string `yaml:"service_name"`

	// === Detection thresholds ===
	// Rule scores at or above HighRiskThreshold short-circuit to spam;
	// scores in [DetailedAnalysisThreshold, HighRiskThreshold) escalate to
	// the LLM.
	HighRiskThreshold         int `yaml:"high_risk_threshold"`
	DetailedAnalysisThreshold int `yaml:"detailed_analysis_threshold"`

	// === Dynamic rules ===
	RuleStaleness time.Duration `yaml:"rule_staleness"`

	// === LLM scorer ===
	LLMProvider string `yaml:"llm_provider"` // "ollama", "openrouter", "groq", "custom", "none"
	LLMAPIKey   string `yaml:"llm_api_key"`
	LLMModel    string `yaml:"llm_model"`
	LLMBaseURL  string `yaml:"llm_base_url"`

	// === Backing stores ===
	PostgresDSN   string `yaml:"postgres_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// === Messaging ===
	NATSURL        string `yaml:"nats_url"`
	EmbeddedNATS   bool   `yaml:"embedded_nats"`
	SubmitSubject  string `yaml:"submit_subject"`
	VerdictSubject string `yaml:"verdict_subject"`
}

// NewDefaultConfig builds a Config from the environment with sensible
// defaults for local development.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr:  GetEnv("BASTION_LISTEN_ADDR", ":8080"),
		LogLevel:    GetEnv("BASTION_LOG_LEVEL", "info"),
		ServiceName: GetEnv("BASTION_SERVICE_NAME", "bastion"),

		HighRiskThreshold:         GetEnvInt("BASTION_HIGH_RISK_THRESHOLD", 70),
		DetailedAnalysisThreshold: GetEnvInt("BASTION_DETAILED_THRESHOLD", 40),

		RuleStaleness: time.Duration(GetEnvInt("BASTION_RULE_STALENESS_SECONDS", 300)) * time.Second,

		LLMProvider: GetEnv("BASTION_LLM_PROVIDER", detectLLMProvider()),
		LLMAPIKey:   GetEnv("BASTION_LLM_API_KEY", GetEnv("GROQ_API_KEY", os.Getenv("OPENROUTER_API_KEY"))),
		LLMModel:    GetEnv("BASTION_LLM_MODEL", ""),
		LLMBaseURL:  GetEnv("BASTION_LLM_BASE_URL", ""),

		PostgresDSN:   GetEnv("BASTION_POSTGRES_DSN", ""),
		RedisAddr:     GetEnv("BASTION_REDIS_ADDR", ""),
		RedisPassword: GetEnv("BASTION_REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("BASTION_REDIS_DB", 0),

		NATSURL:        GetEnv("BASTION_NATS_URL", ""),
		EmbeddedNATS:   GetEnvBool("BASTION_EMBEDDED_NATS", false),
		SubmitSubject:  GetEnv("BASTION_SUBMIT_SUBJECT", "bastion.submissions"),
		VerdictSubject: GetEnv("BASTION_VERDICT_SUBJECT", "bastion.verdicts"),
	}
}

// Load builds the config from the environment, then applies the YAML file
// named by BASTION_CONFIG (if any) on top.
func Load() (*Config, error) {
	cfg := NewDefaultConfig()

	path := os.Getenv("BASTION_CONFIG")
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func detectLLMProvider() string {
	if os.Getenv("GROQ_API_KEY") != "" {
		return "groq"
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" {
		return "openrouter"
	}
	return "ollama"
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a
// default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float value of an environment variable or a
// default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a
// default value. Accepts "true"/"1"/"yes" as true.
func GetEnvBool(key string, defaultValue bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
