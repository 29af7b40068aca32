package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyRemote  = "remote"
	keyTable   = "table"
	keyLogging = "logging"
	keyOutput  = "output"
	keyDemo    = "demo"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyRemote:  true,
	keyTable:   true,
	keyLogging: true,
	keyOutput:  true,
	keyDemo:    true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]interface{}
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, value := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}

		sectionBytes, marshalErr := yaml.Marshal(value)
		if marshalErr != nil {
			return fmt.Errorf("re-marshalling overlay section %q: %w", key, marshalErr)
		}

		if err = unmarshalSection(target, key, sectionBytes); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// unmarshalSection replaces one section of target. Each section decodes into
// a fresh value so maps from the target never leak into the result.
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keyRemote:
		return replaceSection(&target.Remote, data)
	case keyTable:
		return replaceSection(&target.Table, data)
	case keyLogging:
		return replaceSection(&target.Logging, data)
	case keyOutput:
		return replaceSection(&target.Output, data)
	case keyDemo:
		return replaceSection(&target.Demo, data)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func replaceSection[T any](dst *T, data []byte) error {
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}
