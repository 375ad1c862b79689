package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/tap-mssql/internal/domain"
)

// EnvSource is the --config value that reads settings from the environment.
const EnvSource = "ENV"

// EnvPrefix prefixes every setting read from the environment.
const EnvPrefix = "TAP_MSSQL_"

// setting decodes one top level value, in the format of its source, into cfg.
type setting func(cfg *Config) error

// Load reads every source in order and merges their top level keys: a key set
// by a later source replaces the whole value of an earlier one. Defaults are
// applied to the merged settings and the result is validated.
func Load(sources []string, environ []string) (*Config, error) {
	if len(sources) == 0 {
		return nil, &domain.OpError{Op: "config.load", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("no config given")}
	}
	merged := make(map[string]setting)
	origin := make(map[string]string)
	for _, src := range sources {
		doc, err := readSource(src, environ)
		if err != nil {
			return nil, err
		}
		for k, v := range doc {
			merged[k] = v
			origin[k] = src
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cfg := &Config{}
	for _, k := range keys {
		if err := merged[k](cfg); err != nil {
			return nil, &domain.OpError{Op: "config.load", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("%s: %s: %w", origin[k], k, err)}
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readSource returns the top level settings of one source.
func readSource(src string, environ []string) (map[string]setting, error) {
	if src == EnvSource {
		doc, err := envDocument(environ)
		if err != nil {
			return nil, &domain.OpError{Op: "config.load", Kind: domain.KindInvalidConfig, Err: err}
		}
		return doc, nil
	}

	b, err := os.ReadFile(src)
	if err != nil {
		return nil, &domain.OpError{Op: "config.load", Kind: domain.KindNotFound, Err: fmt.Errorf("%s: %w", src, err)}
	}

	doc := make(map[string]setting)
	// JSON files are decoded with encoding/json so tab-indented documents
	// are accepted; everything else goes through YAML.
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, &domain.OpError{Op: "config.load", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("%s: %w", src, err)}
		}
		for k, v := range raw {
			doc[k] = jsonSetting(k, v)
		}
		return doc, nil
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, &domain.OpError{Op: "config.load", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("%s: %w", src, err)}
	}
	for k, v := range raw {
		v := v
		doc[k] = yamlSetting(k, &v)
	}
	return doc, nil
}

func jsonSetting(key string, value json.RawMessage) setting {
	return func(cfg *Config) error {
		b, err := json.Marshal(map[string]json.RawMessage{key: value})
		if err != nil {
			return err
		}
		return json.Unmarshal(b, cfg)
	}
}

func yamlSetting(key string, value *yaml.Node) setting {
	return func(cfg *Config) error {
		doc := yaml.Node{
			Kind:    yaml.MappingNode,
			Content: []*yaml.Node{{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value},
		}
		return doc.Decode(cfg)
	}
}

// envDocument collects TAP_MSSQL_* variables. Structured settings hold YAML
// or JSON text; scalar strings are taken verbatim.
func envDocument(environ []string) (map[string]setting, error) {
	doc := make(map[string]setting)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		kind, known := settingKinds[key]
		if !known {
			continue
		}
		if kind == "string" {
			doc[key] = yamlSetting(key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
			continue
		}
		var parsed yaml.Node
		if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
			return nil, fmt.Errorf("environment variable %s: %w", name, err)
		}
		if parsed.Kind != yaml.DocumentNode || len(parsed.Content) == 0 {
			continue
		}
		doc[key] = yamlSetting(key, parsed.Content[0])
	}
	return doc, nil
}
