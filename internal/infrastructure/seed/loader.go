// Package seed reads cache entries to preload from YAML or TOML files.
package seed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/errs"
)

// Entry is one item to put into the cache.
type Entry struct {
	Key   string
	Value string
	TTL   time.Duration
}

type fileEntry struct {
	Key   string `yaml:"key" toml:"key"`
	Value string `yaml:"value" toml:"value"`
	TTL   string `yaml:"ttl" toml:"ttl"`
}

type file struct {
	Entries []fileEntry `yaml:"entries" toml:"entries"`
}

// Load reads path and picks the format from its extension.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read seed file %q", path)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	entries, err := Parse(data, format)
	if err != nil {
		return nil, errs.Wrapf(err, "parse seed file %q", path)
	}
	return entries, nil
}

// Parse decodes data in the given format (yaml, yml or toml).
func Parse(data []byte, format string) ([]Entry, error) {
	var doc file
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errs.Wrap(err, "decode yaml")
		}
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, errs.Wrap(err, "decode toml")
		}
	default:
		return nil, fmt.Errorf("unsupported seed format %q (yaml|yml|toml)", format)
	}

	if len(doc.Entries) == 0 {
		return nil, errors.New("seed file has no entries")
	}

	out := make([]Entry, 0, len(doc.Entries))
	for i, raw := range doc.Entries {
		key, err := cacheitem.NormalizeKey(raw.Key)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ttl, err := time.ParseDuration(strings.TrimSpace(raw.TTL))
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): parse ttl: %w", i, key, err)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("entry %d (%s): %w", i, key, cacheitem.ErrInvalidTTL)
		}
		out = append(out, Entry{Key: key, Value: raw.Value, TTL: ttl})
	}
	return out, nil
}
