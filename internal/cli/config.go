package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file. Flags given on the command line
// override it.
//
//	database:
//	  driver: postgres
//	  dsn: postgres://localhost/invtrack
//	seed: false
//	metrics_textfile: /var/lib/node_exporter/invtrack.prom
type Config struct {
	Database struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Seed            *bool  `yaml:"seed"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// LoadConfig reads a config file. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// apply copies set config values into opts unless the flag was given.
func (c *Config) apply(opts *RootOptions, changed func(string) bool) {
	if c.Database.Driver != "" && !changed("driver") {
		opts.Driver = c.Database.Driver
	}
	if c.Database.Path != "" && !changed("db") {
		opts.Database = c.Database.Path
	}
	if c.Database.DSN != "" && !changed("dsn") {
		opts.DSN = c.Database.DSN
	}
	if c.Seed != nil && !changed("no-seed") {
		opts.NoSeed = !*c.Seed
	}
	if c.MetricsTextfile != "" && !changed("metrics-textfile") {
		opts.MetricsTextfile = c.MetricsTextfile
	}
}
