package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"txservice/internal/spec"
	"txservice/source/kafka"
)

const SupportedSchema = "v1"

// LoadPipelineSpec parses a pipeline YAML, validates schema_version, and
// returns the parsed spec and an absolute path to the source config (if set).
// A relative recipe_file is resolved against the pipeline's directory.
func LoadPipelineSpec(path string) (spec.File, string, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, "", err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, "", fmt.Errorf("pipeline %s: %w", path, err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, "", fmt.Errorf("pipeline schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	cfg.RecipeFile = resolve(path, cfg.RecipeFile)
	return cfg, resolve(path, cfg.Source.Config), nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(base), p)
}

// Pipeline is a fully loaded stream pipeline.
type Pipeline struct {
	Spec   spec.File
	Recipe string
	Source kafka.Config
}

// LoadPipeline loads the pipeline file, its recipe and its source config.
func LoadPipeline(path string) (Pipeline, error) {
	file, sourcePath, err := LoadPipelineSpec(path)
	if err != nil {
		return Pipeline{}, err
	}
	p := Pipeline{Spec: file, Recipe: file.Recipe}

	switch {
	case file.Recipe != "" && file.RecipeFile != "":
		return p, errors.New("pipeline: recipe and recipe_file are mutually exclusive")
	case file.RecipeFile != "":
		raw, err := os.ReadFile(file.RecipeFile)
		if err != nil {
			return p, fmt.Errorf("pipeline: recipe_file: %w", err)
		}
		p.Recipe = string(raw)
	case file.Recipe == "":
		return p, errors.New("pipeline: recipe or recipe_file is required")
	}

	if file.Source.Kind != "kafka" {
		return p, fmt.Errorf("pipeline: unsupported source %q", file.Source.Kind)
	}
	if p.Source, err = kafka.LoadConfig(sourcePath); err != nil {
		return p, fmt.Errorf("pipeline: source config: %w", err)
	}
	if len(file.Sinks) == 0 {
		return p, errors.New("pipeline: at least one sink is required")
	}
	return p, nil
}
