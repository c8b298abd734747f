// Package entitygen provides the default spawn collaborator: it turns a
// spawn effect into a concrete, placeable entity. Richer generation (art,
// model-written descriptions) plugs in behind the same engine.Spawner
// interface.
package entitygen

import (
	"context"
	"fmt"
	"strings"

	"talecraft.ai/internal/sim/engine"
	"talecraft.ai/internal/sim/entities"
)

// IDSource mints entity ids; the store's NewID is the usual one.
type IDSource func(kind entities.Kind, name string) string

type Generator struct {
	ids IDSource
}

func New(ids IDSource) (*Generator, error) {
	if ids == nil {
		return nil, fmt.Errorf("entitygen: nil id source")
	}
	return &Generator{ids: ids}, nil
}

// Generate builds one entity from a spawn request. Each call stands alone:
// a failure here skips that one spawn and nothing else.
func (g *Generator) Generate(_ context.Context, req engine.SpawnRequest) (*entities.Entity, error) {
	name := nameFromPrompt(req.Prompt)
	if name == "" {
		return nil, fmt.Errorf("spawn prompt %q yields no usable name", req.Prompt)
	}
	e := &entities.Entity{
		ID:                    g.ids(req.Kind, name),
		Name:                  name,
		VisualDescription:     req.Prompt,
		FunctionalDescription: req.Prompt,
		Category:              categoryFor(req.Kind),
		Region:                req.Region,
		X:                     req.X,
		Y:                     req.Y,
		OwnAttributes:         map[string]entities.Attribute{},
	}
	return e, nil
}

func categoryFor(kind entities.Kind) string {
	switch kind {
	case entities.KindItem:
		return "misc"
	case entities.KindNPC:
		return "commoner"
	case entities.KindLocation:
		return "landmark"
	default:
		return "misc"
	}
}

// nameFromPrompt keeps the leading noun phrase of a prompt as the display
// name: "a dented lantern, half buried in mud" becomes "Dented Lantern".
func nameFromPrompt(prompt string) string {
	head := prompt
	for _, cut := range []string{",", ".", ";", " - ", " with ", " that "} {
		if i := strings.Index(head, cut); i > 0 {
			head = head[:i]
		}
	}
	words := strings.Fields(head)
	for len(words) > 0 {
		switch strings.ToLower(words[0]) {
		case "a", "an", "the":
			words = words[1:]
		default:
			goto done
		}
	}
done:
	if len(words) == 0 {
		return ""
	}
	if len(words) > 4 {
		words = words[:4]
	}
	for i, w := range words {
		if len(w) > 1 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		} else {
			words[i] = strings.ToUpper(w)
		}
	}
	return strings.Join(words, " ")
}
