package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// DeploymentProfile is a YAML profile for one gateway deployment. Profiles
// capture the operational posture of an instance (cooldowns, flood limits,
// admission expression) so operators version them alongside the service.
type DeploymentProfile struct {
	Name            string          `yaml:"name" json:"name"`
	InstanceID      string          `yaml:"instance_id" json:"instance_id"`
	Owner           string          `yaml:"owner,omitempty" json:"owner,omitempty"`
	CooldownSeconds int             `yaml:"cooldown_seconds" json:"cooldown_seconds"`
	Oracle          OracleConfig    `yaml:"oracle" json:"oracle"`
	Limiter         LimiterConfig   `yaml:"limiter,omitempty" json:"limiter,omitempty"`
	Admission       AdmissionConfig `yaml:"admission,omitempty" json:"admission,omitempty"`
}

// OracleConfig identifies the trusted decryption oracle.
type OracleConfig struct {
	PublicKey string `yaml:"public_key" json:"public_key"` // hex ed25519
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
}

// LimiterConfig bounds the public callback route.
type LimiterConfig struct {
	RPM   int `yaml:"rpm,omitempty" json:"rpm,omitempty"`
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// AdmissionConfig carries an optional CEL expression evaluated on every
// provider-facing call in addition to the built-in role/pause/cooldown gate.
type AdmissionConfig struct {
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

const profileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "instance_id", "oracle"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "instance_id": {"type": "string", "minLength": 1},
    "owner": {"type": "string"},
    "cooldown_seconds": {"type": "integer", "minimum": 0},
    "oracle": {
      "type": "object",
      "required": ["public_key"],
      "properties": {
        "public_key": {"type": "string", "pattern": "^[0-9a-fA-F]{64}$"},
        "url": {"type": "string", "format": "uri"}
      }
    },
    "limiter": {
      "type": "object",
      "properties": {
        "rpm": {"type": "integer", "minimum": 1},
        "burst": {"type": "integer", "minimum": 1}
      }
    },
    "admission": {
      "type": "object",
      "properties": {
        "expression": {"type": "string"}
      }
    }
  },
  "additionalProperties": false
}`

var compiledProfileSchema = mustCompileProfileSchema()

func mustCompileProfileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := "https://veilstone.dev/fhegate/profile.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(profileSchema)); err != nil {
		panic(fmt.Sprintf("profile schema resource: %v", err))
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("profile schema compile: %v", err))
	}
	return s
}

// LoadProfile reads, schema-validates, and decodes a deployment profile.
func LoadProfile(path string) (*DeploymentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile validates profile YAML against the schema before decoding.
func ParseProfile(data []byte) (*DeploymentProfile, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	// jsonschema validates JSON-decoded values, so round-trip the YAML
	// document through encoding/json first.
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize profile: %w", err)
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("normalize profile: %w", err)
	}
	if err := compiledProfileSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("profile schema validation failed: %w", err)
	}

	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &profile, nil
}

// Apply overlays the profile onto an environment-derived Config. Profile
// values win where both are set.
func (p *DeploymentProfile) Apply(c *Config) {
	c.InstanceID = p.InstanceID
	if p.Owner != "" {
		c.Owner = p.Owner
	}
	if p.CooldownSeconds > 0 {
		c.CooldownSeconds = p.CooldownSeconds
	}
	if p.Oracle.PublicKey != "" {
		c.OraclePublicKey = p.Oracle.PublicKey
	}
	if p.Oracle.URL != "" {
		c.OracleURL = p.Oracle.URL
	}
	if p.Limiter.RPM > 0 {
		c.CallbackRPM = p.Limiter.RPM
	}
	if p.Limiter.Burst > 0 {
		c.CallbackBurst = p.Limiter.Burst
	}
}
