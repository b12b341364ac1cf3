// Package config loads the YAML configuration file that seeds the
// areas to sync and the CORS surface consumed by the (external) HTTP
// layer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tramsync.dev/tramsync/model"
)

// Area mirrors model.Area's configured fields as they appear on disk.
type Area struct {
	Name           string              `yaml:"name"`
	BoundingBox    BoundingBox         `yaml:"bounding_box"`
	TransportTypes []model.TransportType `yaml:"transport_types"`
}

// BoundingBox is the on-disk shape of a model.BoundingBox.
type BoundingBox struct {
	South float64 `yaml:"south"`
	West  float64 `yaml:"west"`
	North float64 `yaml:"north"`
	East  float64 `yaml:"east"`
}

func (b BoundingBox) toModel() model.BoundingBox {
	return model.BoundingBox{South: b.South, West: b.West, North: b.North, East: b.East}
}

// Config is the whole configuration file.
type Config struct {
	Areas          []Area   `yaml:"areas"`
	CORSOrigins    []string `yaml:"cors_origins"`
	CORSPermissive bool     `yaml:"cors_permissive"`
}

// Load reads and parses a YAML config file. Any failure here is fatal
// at startup per spec — callers are not expected to retry.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// ModelAreas converts the on-disk areas into model.Area values, ready
// to be upserted by the topology store.
func (c *Config) ModelAreas() []model.Area {
	out := make([]model.Area, 0, len(c.Areas))
	for _, a := range c.Areas {
		out = append(out, model.Area{
			Name:           a.Name,
			BoundingBox:    a.BoundingBox.toModel(),
			TransportTypes: a.TransportTypes,
		})
	}
	return out
}
