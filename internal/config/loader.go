package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load returns the defaults overlaid with the file at path and then the
// environment. A missing file is not an error. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := Decode(&cfg, path, bytes.NewReader(data)); err != nil {
				return cfg, err
			}
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode overlays cfg with the file content in r. The format is chosen
// by the extension of path. Unknown keys are rejected.
func Decode(cfg *Config, path string, r io.Reader) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return tomlError(path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return yamlError(path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	return nil
}

func tomlError(path string, err error) error {
	pe := &ParseError{Path: path, Message: err.Error(), Err: err}
	var de *toml.DecodeError
	if errors.As(err, &de) {
		pe.Line, pe.Column = de.Position()
	}
	var se *toml.StrictMissingError
	if errors.As(err, &se) {
		pe.Message = se.String()
	}
	return pe
}

func yamlError(path string, err error) error {
	pe := &ParseError{Path: path, Message: err.Error(), Err: err}
	var te *yaml.TypeError
	if errors.As(err, &te) {
		pe.Message = strings.Join(te.Errors, "; ")
	}
	return pe
}
