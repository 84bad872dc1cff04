// Package pipeline runs a recipe over a stream: Kafka in, sinks out.
package pipeline

import (
	"errors"
	"fmt"

	"txservice/internal/config"
	"txservice/internal/spec"
	"txservice/internal/wrangle"
	"txservice/sink"
	_ "txservice/sink/kafka"  // registers "kafka"
	_ "txservice/sink/stdout" // registers "stdout"
	"txservice/source/kafka"
)

// Compile loads the pipeline file at path and wires its recipe, source and
// sinks. The recipe is compiled before any connection is opened.
func Compile(path string, svc *wrangle.Service) (*Runner, error) {
	p, err := config.LoadPipeline(path)
	if err != nil {
		return nil, err
	}
	recipe, err := svc.Compile(p.Spec.Name, p.Recipe)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", p.Spec.Name, err)
	}

	r := NewRunner(p.Spec.Name, svc, recipe)
	if err := addSinks(r, p.Spec); err != nil {
		_ = r.Close()
		return nil, err
	}

	src, err := kafka.NewAdapter(p.Spec.Source.Driver)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	if err := src.Configure(p.Source); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("pipeline %s: source: %w", p.Spec.Name, err)
	}
	r.SetSource(src)
	return r, nil
}

func addSinks(r *Runner, file spec.File) error {
	seen := make(map[string]bool, len(file.Sinks))
	for _, name := range file.Sinks {
		if seen[name] {
			return fmt.Errorf("sink %q listed twice", name)
		}
		seen[name] = true

		drv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}
		switch name {
		case "stdout":
			err = drv.Configure(file.SinkConfigs.Stdout)
		case "kafka":
			err = drv.Configure(file.SinkConfigs.Kafka)
		default:
			err = errors.New("no config block for sink")
		}
		if err != nil {
			return fmt.Errorf("sink %q: %w", name, err)
		}
		r.AddSink(drv)
	}
	return nil
}
