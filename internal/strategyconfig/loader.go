package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read strategy config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates a YAML (or JSON) strategy document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, ValidationError{"yaml", err.Error()}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills optional fields that have a documented default
func ApplyDefaults(cfg *Config) {
	if cfg.Rebalance.Frequency == "" {
		cfg.Rebalance.Frequency = "MONTH_END"
	}
	if cfg.Alignment.Policy == "" {
		cfg.Alignment.Policy = "LAG_WEIGHTS"
	}
	if cfg.Alignment.HoldingFill == "" {
		cfg.Alignment.HoldingFill = "FORWARD"
	}
	if cfg.Universe.Kind == "" {
		cfg.Universe.Kind = UniverseAll
	}
	if cfg.Data.Returns == "" {
		cfg.Data.Returns = "close_to_close"
	}
	if cfg.Analytics.RollingBetaWindow == 0 {
		cfg.Analytics.RollingBetaWindow = 252
	}
	if cfg.Analytics.VaRConfidence == 0 {
		cfg.Analytics.VaRConfidence = 0.95
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewDecisionSnapshot creates a snapshot for audit
func NewDecisionSnapshot(cfg *Config, yamlData []byte, gitCommit, dataSnapshotID string) (*DecisionSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &DecisionSnapshot{
		ConfigHash:     hash,
		ConfigYAML:     string(yamlData),
		StrategyID:     cfg.Meta.StrategyID,
		GitCommit:      gitCommit,
		DataSnapshotID: dataSnapshotID,
		CreatedAt:      time.Now(),
	}, nil
}
