package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadPipelineSpec_ResolvesRelativePathsAndSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "orders.yml", `schema_version: v1
recipe_file: orders.recipe
source:
  kind: kafka
  driver: sarama
  config: kafka_source.yml
sinks: [stdout]
`)

	cfg, abs, err := LoadPipelineSpec(path)
	if err != nil {
		t.Fatalf("LoadPipelineSpec: %v", err)
	}
	if cfg.SchemaVersion != SupportedSchema {
		t.Fatalf("want schema %s, got %s", SupportedSchema, cfg.SchemaVersion)
	}
	if cfg.Name != "orders" {
		t.Fatalf("name = %q, want file base name", cfg.Name)
	}
	if abs != filepath.Join(dir, "kafka_source.yml") {
		t.Fatalf("source config = %q", abs)
	}
	if cfg.RecipeFile != filepath.Join(dir, "orders.recipe") {
		t.Fatalf("recipe file = %q", cfg.RecipeFile)
	}
}

func TestLoadPipelineSpec_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yml", `schema_version: v999
source: { kind: kafka, driver: sarama, config: cf.yml }
sinks: [stdout]
`)
	if _, _, err := LoadPipelineSpec(path); err == nil {
		t.Fatal("expected error for invalid schema_version")
	}
}

func TestLoadPipeline(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "upper.recipe", "uppercase :body;")
	writeFile(t, dir, "kafka.yml", `schema_version: v1
brokers: [localhost:9092]
topics: [in]
group_id: txservice
commit_interval: 2s
`)
	path := writeFile(t, dir, "pipeline.yml", `name: upper
recipe_file: upper.recipe
source: { kind: kafka, driver: sarama, config: kafka.yml }
sinks: [stdout]
sink_configs:
  stdout:
    print_counter: true
`)

	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if p.Recipe != "uppercase :body;" {
		t.Fatalf("recipe = %q", p.Recipe)
	}
	if p.Source.GroupID != "txservice" || len(p.Source.Topics) != 1 {
		t.Fatalf("source config = %+v", p.Source)
	}
	if p.Source.CommitInterval != 2*time.Second {
		t.Fatalf("commit interval = %v", p.Source.CommitInterval)
	}
	if !p.Spec.SinkConfigs.Stdout.PrintCounter {
		t.Fatal("stdout sink config not decoded")
	}
}

func TestLoadPipeline_Errors(t *testing.T) {
	cases := map[string]string{
		"no recipe":      "source: { kind: kafka, driver: sarama }\nsinks: [stdout]\n",
		"both recipes":   "recipe: trim :body\nrecipe_file: x.recipe\nsource: { kind: kafka }\nsinks: [stdout]\n",
		"unknown source": "recipe: trim :body\nsource: { kind: amqp }\nsinks: [stdout]\n",
		"no sinks":       "recipe: trim :body\nsource: { kind: kafka, driver: sarama }\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "pipeline.yml", body)
			if _, err := LoadPipeline(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
