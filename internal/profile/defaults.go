package profile

import (
	"embed"
	"fmt"
	"os"
	"sort"
)

//go:embed builtin/*.yaml
var builtinProfilesFS embed.FS

// BuiltinProfiles returns the profiles compiled into the binary.
func BuiltinProfiles() (map[string]*Profile, error) {
	entries, err := builtinProfilesFS.ReadDir("builtin")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded builtin profiles: %w", err)
	}
	profiles := make(map[string]*Profile, len(entries))
	for _, entry := range entries {
		data, err := builtinProfilesFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		p, err := LoadProfileFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// BuiltinNames returns the sorted builtin profile names.
func BuiltinNames() []string {
	profiles, err := BuiltinProfiles()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load resolves nameOrPath: an existing file is loaded as YAML, anything
// else must name a builtin profile.
func Load(nameOrPath string) (*Profile, error) {
	if info, err := os.Stat(nameOrPath); err == nil && !info.IsDir() {
		return LoadProfileFromFile(nameOrPath)
	}
	profiles, err := BuiltinProfiles()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[nameOrPath]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (builtin: %v)", nameOrPath, BuiltinNames())
	}
	return p, nil
}
