package schema

import (
	"encoding/json"
	"fmt"
	"os"
)

// Seed file shape: kind -> category -> attribute name -> definition.
type seedFile map[string]map[string]map[string]Definition

// Load reads a seed catalog of predefined attribute definitions. A missing
// path yields an empty library; runtime Define grows it from there.
func Load(path string) (*Library, error) {
	l := NewLibrary()
	if path == "" {
		return l, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, err
	}
	var seed seedFile
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("attribute seed %s: %w", path, err)
	}
	for kind, cats := range seed {
		for cat, defs := range cats {
			for name, def := range defs {
				if def.Type == "" || def.Description == "" || def.Reference == "" {
					return nil, fmt.Errorf("attribute seed %s: %s/%s/%s is incomplete", path, kind, cat, name)
				}
				l.Define(kind, cat, name, def)
			}
		}
	}
	return l, nil
}
