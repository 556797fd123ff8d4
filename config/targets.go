package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dkoetsier/eanharvest/models"
)

type targetsFile struct {
	Targets []models.CategoryTarget `yaml:"targets"`
}

// LoadTargets reads category targets from a YAML file of the form:
//
//	targets:
//	  - url: https://www.bol.com/nl/nl/l/analoge-instantcamera-s/20974/
//	    start_page: 1
//	    max_pages: 3
//
// Per-target start_page and max_pages are optional; zero values are filled
// from the run-wide defaults by Config.Normalize.
func LoadTargets(path string) ([]models.CategoryTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse targets file %q: %w", path, err)
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("targets file %q lists no targets", path)
	}
	return file.Targets, nil
}
