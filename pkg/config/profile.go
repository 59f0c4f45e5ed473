package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/records"
)

// SupportedProfileVersions is the schema_version range this build reads.
const SupportedProfileVersions = "^1"

var (
	ErrInvalidMerchantID  = errors.New("config: invalid merchant id")
	ErrUnsupportedProfile = errors.New("config: unsupported profile schema version")

	merchantIDPattern          = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	supportedProfileConstraint = mustConstraint(SupportedProfileVersions)
)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ConnectorProfile describes one data source for a merchant. Tokens are
// never stored in profiles; TokenEnv names the variable holding one.
type ConnectorProfile struct {
	Kind              string  `yaml:"kind" json:"kind"` // "payouts" | "ads"
	Platform          string  `yaml:"platform" json:"platform"`
	BaseURL           string  `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	TokenEnv          string  `yaml:"token_env,omitempty" json:"token_env,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`
	File              string  `yaml:"file,omitempty" json:"file,omitempty"`
}

// MerchantProfile is the merchant-authored configuration.
type MerchantProfile struct {
	SchemaVersion    string                  `yaml:"schema_version" json:"schema_version"`
	MerchantID       string                  `yaml:"merchant_id" json:"merchant_id"`
	Rules            reconcile.RuleOverrides `yaml:"rules" json:"rules"`
	TemplatesFile    string                  `yaml:"templates_file,omitempty" json:"templates_file,omitempty"`
	AdsGroupBy       string                  `yaml:"ads_group_by,omitempty" json:"ads_group_by,omitempty"`
	AlertMinSeverity string                  `yaml:"alert_min_severity,omitempty" json:"alert_min_severity,omitempty"`
	Connectors       []ConnectorProfile      `yaml:"connectors,omitempty" json:"connectors,omitempty"`
}

// ValidMerchantID reports whether id is safe to use in file and key names.
func ValidMerchantID(id string) bool {
	return merchantIDPattern.MatchString(id)
}

// LoadProfile reads merchant_<id>.yaml from dir. Relative file paths inside
// the profile are resolved against dir.
func LoadProfile(dir, merchantID string) (*MerchantProfile, error) {
	if !ValidMerchantID(merchantID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMerchantID, merchantID)
	}
	path := filepath.Join(dir, fmt.Sprintf("merchant_%s.yaml", merchantID))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", merchantID, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", merchantID, err)
	}
	if p.MerchantID == "" {
		p.MerchantID = merchantID
	}
	if p.MerchantID != merchantID {
		return nil, fmt.Errorf("%w: profile %s declares merchant %q", ErrInvalidMerchantID, path, p.MerchantID)
	}
	p.TemplatesFile = resolve(dir, p.TemplatesFile)
	for i := range p.Connectors {
		p.Connectors[i].File = resolve(dir, p.Connectors[i].File)
	}
	return p, nil
}

// ParseProfile decodes and checks a profile document.
func ParseProfile(data []byte) (*MerchantProfile, error) {
	var p MerchantProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.SchemaVersion == "" {
		p.SchemaVersion = "1.0.0"
	}
	v, err := semver.NewVersion(p.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProfile, p.SchemaVersion)
	}
	if !supportedProfileConstraint.Check(v) {
		return nil, fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupportedProfile, v, SupportedProfileVersions)
	}
	for _, c := range p.Connectors {
		if c.Kind != "payouts" && c.Kind != "ads" {
			return nil, fmt.Errorf("connector %q: kind must be payouts or ads, got %q", c.Platform, c.Kind)
		}
	}
	if _, err := p.RuleConfig(); err != nil {
		return nil, err
	}
	return &p, nil
}

// RuleConfig applies the profile's overrides to the defaults.
func (p *MerchantProfile) RuleConfig() (reconcile.RuleConfig, error) {
	return reconcile.DefaultRuleConfig().ApplyValidated(p.Rules)
}

// GroupBy returns the configured ad grouping.
func (p *MerchantProfile) GroupBy() records.GroupBy {
	return records.ParseGroupBy(p.AdsGroupBy)
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
