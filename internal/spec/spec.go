// Package spec holds the on-disk shape of a stream pipeline file.
package spec

import (
	sinkkafka "txservice/sink/kafka"
	"txservice/sink/stdout"
)

type Source struct {
	Kind   string `yaml:"kind"`   // only "kafka" today
	Driver string `yaml:"driver"` // registered source driver, e.g. "sarama"
	Config string `yaml:"config"` // driver config file, relative to the pipeline file
}

type SinkConfigs struct {
	Kafka  sinkkafka.Config `yaml:"kafka"`
	Stdout stdout.Config    `yaml:"stdout"`
}

// File is a pipeline that applies one recipe to every source message and
// fans the resulting rows out to the listed sinks.
type File struct {
	SchemaVersion string `yaml:"schema_version"`
	Name          string `yaml:"name"`

	// Exactly one of Recipe and RecipeFile is set.
	Recipe     string `yaml:"recipe"`
	RecipeFile string `yaml:"recipe_file"`

	Source      Source      `yaml:"source"`
	Sinks       []string    `yaml:"sinks"`
	SinkConfigs SinkConfigs `yaml:"sink_configs"`
}
