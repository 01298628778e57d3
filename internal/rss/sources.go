package rss

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidSource = errors.New("invalid feed source")

// Source is one configured feed.
type Source struct {
	URL        string `yaml:"url" json:"url"`
	Category   string `yaml:"category" json:"category"`
	SourceName string `yaml:"source_name" json:"source_name"`
	Enabled    *bool  `yaml:"enabled" json:"enabled"`
}

// IsEnabled treats a missing flag as enabled.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

func (s Source) Validate() error {
	switch {
	case strings.TrimSpace(s.URL) == "":
		return fmt.Errorf("%w: missing url", ErrInvalidSource)
	case !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://"):
		return fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidSource, s.URL)
	case strings.TrimSpace(s.Category) == "":
		return fmt.Errorf("%w: %s has no category", ErrInvalidSource, s.URL)
	case strings.TrimSpace(s.SourceName) == "":
		return fmt.Errorf("%w: %s has no source name", ErrInvalidSource, s.URL)
	}
	return nil
}

// Registry is the sources file:
//
//	general:
//	  - url: https://...
//	    category: General
//	    source_name: Example
//	    enabled: true
//	education:
//	  - ...
type Registry struct {
	General   []Source `yaml:"general"`
	Education []Source `yaml:"education"`
}

// LoadSources reads the registry from a YAML file.
func LoadSources(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reg Registry
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("failed to parse sources %s: %w", path, err)
	}
	return &reg, nil
}

// Active returns the enabled, valid sources of every group in file order.
// Invalid sources are logged and dropped.
func (r *Registry) Active(log *slog.Logger) []Source {
	if log == nil {
		log = slog.Default()
	}
	var out []Source
	for _, group := range [][]Source{r.General, r.Education} {
		for _, s := range group {
			if !s.IsEnabled() {
				continue
			}
			if err := s.Validate(); err != nil {
				log.Warn("skipping feed source", "source", s.SourceName, "error", err)
				continue
			}
			out = append(out, s)
		}
	}
	return out
}
