package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration document from path, overlaying any
// TASQSYM_-prefixed environment variable onto the matching dotted key
// (e.g. TASQSYM_GENERAL_LOG_LEVEL overrides general.log_level). Grounded
// on `niceyeti-tabular`'s FromYaml: viper only drives the generic
// file+env read, then a yaml.Marshal/yaml.Unmarshal round trip decodes
// into the precisely-typed Document — this is what lets ModelNode's
// one-of-role-key UnmarshalYAML run, which viper's mapstructure-based
// Unmarshal would not invoke.
func Load(path string) (Document, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASQSYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Document{}, errors.Wrapf(err, "config: reading %q", path)
	}

	var raw map[string]any
	if err := v.Unmarshal(&raw); err != nil {
		return Document{}, errors.Wrap(err, "config: unmarshalling raw settings")
	}

	respun, err := yaml.Marshal(raw)
	if err != nil {
		return Document{}, errors.Wrap(err, "config: re-marshalling settings")
	}

	var doc Document
	if err := yaml.Unmarshal(respun, &doc); err != nil {
		return Document{}, errors.Wrap(err, "config: decoding document")
	}
	return doc, nil
}
