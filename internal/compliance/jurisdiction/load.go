package jurisdiction

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtin embed.FS

// Parse decodes and validates a single YAML profile
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if err := p.prepare(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Builtin returns the profiles shipped with the service, sorted by name
func Builtin() ([]*Profile, error) {
	entries, err := builtin.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin profiles: %w", err)
	}

	profiles := make([]*Profile, 0, len(entries))
	for _, entry := range entries {
		data, err := builtin.ReadFile("profiles/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin profile %s: %w", entry.Name(), err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("builtin profile %s: %w", entry.Name(), err)
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// LoadDir reads every *.yaml profile in dir
func LoadDir(dir string) ([]*Profile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles in %s: %w", dir, err)
	}
	sort.Strings(paths)

	profiles := make([]*Profile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", path, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Load returns the builtin profiles overlaid with those in dir. A profile in
// dir replaces a builtin profile of the same name.
func Load(dir string) ([]*Profile, error) {
	profiles, err := Builtin()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return profiles, nil
	}

	extra, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(profiles))
	for i, p := range profiles {
		byName[p.Name] = i
	}
	for _, p := range extra {
		if i, ok := byName[p.Name]; ok {
			profiles[i] = p
			continue
		}
		byName[p.Name] = len(profiles)
		profiles = append(profiles, p)
	}
	return profiles, nil
}
