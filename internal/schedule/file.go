package schedule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in posting table.
func Default() []Entry {
	return []Entry{
		{Source: "g:tech", Times: []string{"11:00", "15:00", "19:00"}},
		{Source: "g:politics", Times: []string{"12:00", "18:00"}},
		{Source: "g:science", Times: []string{"9:00", "13:00", "17:00", "21:00"}},
		{Source: "g:social", Times: []string{"10:00", "16:00", "20:00"}},
		{Source: "g:business", Times: []string{"14:00"}},
	}
}

// LoadFile reads a YAML list of entries, validates it and merges entries that
// share a source. An empty path yields Default.
func LoadFile(path string) ([]Entry, error) {
	if path == "" {
		return Merge(Default()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML schedule content.
func Parse(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}

	if err := Validate(entries); err != nil {
		return nil, err
	}

	return Merge(entries), nil
}

// Merge folds entries of the same source into one, keeping the order in which
// sources first appear and the order of their times. Selection ties are then
// decided by that first-appearance order.
func Merge(entries []Entry) []Entry {
	index := make(map[string]int, len(entries))
	merged := make([]Entry, 0, len(entries))

	for _, entry := range entries {
		i, ok := index[entry.Source]
		if !ok {
			index[entry.Source] = len(merged)
			merged = append(merged, Entry{Source: entry.Source, Times: append([]string(nil), entry.Times...)})
			continue
		}
		merged[i].Times = append(merged[i].Times, entry.Times...)
	}

	return merged
}

// Sources lists the distinct sources referenced by entries.
func Sources(entries []Entry) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if seen[entry.Source] {
			continue
		}
		seen[entry.Source] = true
		out = append(out, entry.Source)
	}
	return out
}
