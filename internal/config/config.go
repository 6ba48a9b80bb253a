// Package config loads harness settings from the workspace settings file:
// layered defaults, a single JSON source of truth loaded through viper,
// and a meta-schema check before anything downstream trusts the values.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/viper"

	"github.com/zjrosen/conductor/internal/log"
)

// FormatPattern maps a file-extension match to a formatter command,
// corresponding to one entry of validation.format.patterns.
type FormatPattern struct {
	Match   string `mapstructure:"match" json:"match"`
	Command string `mapstructure:"command" json:"command"`
}

// Settings is the fully-resolved harness configuration, mapstructure-tagged
// for viper's Unmarshal.
type Settings struct {
	Spawn struct {
		MaxParallelPrompts int `mapstructure:"maxParallelPrompts" json:"maxParallelPrompts"`
	} `mapstructure:"spawn" json:"spawn"`

	EventLoop struct {
		TickIntervalMs        int `mapstructure:"tickIntervalMs" json:"tickIntervalMs"`
		SpawnCooldownMs       int `mapstructure:"spawnCooldownMs" json:"spawnCooldownMs"`
		PlannerBaseCooldownMs int `mapstructure:"plannerBaseCooldownMs" json:"plannerBaseCooldownMs"`
		PlannerMaxBackoff     int `mapstructure:"plannerMaxBackoff" json:"plannerMaxBackoff"`
	} `mapstructure:"eventLoop" json:"eventLoop"`

	PRReview struct {
		PollEveryTicks  int    `mapstructure:"pollEveryTicks" json:"pollEveryTicks"`
		DetectionMarker string `mapstructure:"detectionMarker" json:"detectionMarker"`
	} `mapstructure:"prReview" json:"prReview"`

	Validation struct {
		Format FormatSettings `mapstructure:"format" json:"format"`
	} `mapstructure:"validation" json:"validation"`
}

// FormatSettings is validation.format: whether the post-write formatter
// hook is enabled, and its per-extension command table.
type FormatSettings struct {
	Enabled  bool            `mapstructure:"enabled" json:"enabled"`
	Patterns []FormatPattern `mapstructure:"patterns" json:"patterns"`
}

// Defaults returns the enumerated defaults from the settings key table.
func Defaults() Settings {
	var s Settings
	s.Spawn.MaxParallelPrompts = 3
	s.EventLoop.TickIntervalMs = 5000
	s.EventLoop.SpawnCooldownMs = 10000
	s.EventLoop.PlannerBaseCooldownMs = 10000
	s.EventLoop.PlannerMaxBackoff = 4
	s.PRReview.PollEveryTicks = 3
	s.PRReview.DetectionMarker = "<!-- review-comment -->"
	s.Validation.Format.Enabled = true
	s.Validation.Format.Patterns = []FormatPattern{}
	return s
}

// metaSchemaJSON constrains the shape of the on-disk settings file: no
// negative cooldowns, no non-integer counters. Validated ahead of
// viper.Unmarshal so malformed settings fail loudly instead of silently
// coercing into zero values.
const metaSchemaJSON = `{
  "type": "object",
  "properties": {
    "spawn": {
      "type": "object",
      "properties": {
        "maxParallelPrompts": {"type": "integer", "minimum": 1}
      }
    },
    "eventLoop": {
      "type": "object",
      "properties": {
        "tickIntervalMs": {"type": "integer", "minimum": 1},
        "spawnCooldownMs": {"type": "integer", "minimum": 1},
        "plannerBaseCooldownMs": {"type": "integer", "minimum": 1},
        "plannerMaxBackoff": {"type": "integer", "minimum": 0}
      }
    },
    "prReview": {
      "type": "object",
      "properties": {
        "pollEveryTicks": {"type": "integer", "minimum": 1},
        "detectionMarker": {"type": "string"}
      }
    },
    "validation": {
      "type": "object",
      "properties": {
        "format": {
          "type": "object",
          "properties": {
            "enabled": {"type": "boolean"},
            "patterns": {
              "type": "array",
              "items": {
                "type": "object",
                "properties": {
                  "match": {"type": "string"},
                  "command": {"type": "string"}
                }
              }
            }
          }
        }
      }
    }
  }
}`

// Load reads the settings file at path, validates it against the meta
// schema, and merges it over Defaults(). A missing file is not an error:
// Defaults() is returned unchanged, and any key the file omits keeps its
// default value.
func Load(path string) (Settings, error) {
	settings := Defaults()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debug(log.CatConfig, "no settings file, using defaults", "path", path)
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	if err := validateMetaSchema(raw); err != nil {
		return settings, fmt.Errorf("settings file %s failed validation: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return settings, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	if err := v.Unmarshal(&settings); err != nil {
		return settings, fmt.Errorf("decoding settings file %s: %w", path, err)
	}

	log.Info(log.CatConfig, "loaded settings", "path", path)
	return settings, nil
}

// validateMetaSchema compiles and applies metaSchemaJSON to raw.
func validateMetaSchema(raw []byte) error {
	var schemaDoc any
	if err := json.Unmarshal([]byte(metaSchemaJSON), &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal meta-schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal settings: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("settings-schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("settings-schema.json")
	if err != nil {
		return fmt.Errorf("compile meta-schema: %w", err)
	}

	return schema.Validate(doc)
}

// WriteDefault writes Defaults() to path if it does not already exist,
// for first-run bootstrap.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(Defaults(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling default settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default settings to %s: %w", path, err)
	}
	log.Info(log.CatConfig, "wrote default settings", "path", path)
	return nil
}
