package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// profileYAML is the file representation; validity is a duration string
// such as "8760h", "365d" or "10y".
type profileYAML struct {
	Profile  `yaml:",inline"`
	Validity string `yaml:"validity"`
}

// LoadProfileFromFile loads a profile from a YAML file.
func LoadProfileFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	return LoadProfileFromBytes(data)
}

// LoadProfileFromBytes loads a profile from YAML bytes.
func LoadProfileFromBytes(data []byte) (*Profile, error) {
	var py profileYAML
	if err := yaml.Unmarshal(data, &py); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	p := py.Profile
	validity, err := parseDuration(py.Validity)
	if err != nil {
		return nil, fmt.Errorf("invalid validity: %w", err)
	}
	p.Validity = validity
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}
	return &p, nil
}

// LoadProfilesFromDirectory loads every .yaml or .yml file in dir, keyed
// by profile name. A missing directory yields an empty map.
func LoadProfilesFromDirectory(dir string) (map[string]*Profile, error) {
	profiles := make(map[string]*Profile)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p, err := LoadProfileFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load profile from %s: %w", entry.Name(), err)
		}
		if _, exists := profiles[p.Name]; exists {
			return nil, fmt.Errorf("duplicate profile name: %s", p.Name)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// parseDuration accepts Go durations plus leading year ("y") and day
// ("d") components, e.g. "1y30d12h".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var total time.Duration
	remaining := s
	for _, unit := range []struct {
		suffix string
		size   time.Duration
	}{
		{"y", 365 * 24 * time.Hour},
		{"d", 24 * time.Hour},
	} {
		idx := strings.Index(remaining, unit.suffix)
		if idx < 0 {
			continue
		}
		n, err := strconv.ParseUint(remaining[:idx], 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q in %q", remaining[:idx], s)
		}
		total += time.Duration(n) * unit.size
		remaining = remaining[idx+1:]
	}
	if remaining != "" {
		d, err := time.ParseDuration(remaining)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %w", err)
		}
		total += d
	}
	return total, nil
}
