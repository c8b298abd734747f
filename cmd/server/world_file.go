package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"talecraft.ai/internal/sim/entities"
)

// worldFile is the initial world: regions plus starting entities. Every
// entity id is minted by the store so later spawns never collide.
type worldFile struct {
	Regions []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"regions"`
	Entities []struct {
		Type                  string `json:"type"`
		Name                  string `json:"name"`
		VisualDescription     string `json:"visual_description"`
		FunctionalDescription string `json:"functional_description"`
		Category              string `json:"category"`
		Rarity                string `json:"rarity"`
		Region                string `json:"region"`
		X                     int    `json:"x"`
		Y                     int    `json:"y"`
	} `json:"entities"`
}

func loadWorldFile(path string, store *entities.Store, logger *log.Logger) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("world file not found (%s); starting empty", path)
			return nil
		}
		return err
	}
	var wf worldFile
	if err := json.Unmarshal(b, &wf); err != nil {
		return fmt.Errorf("world file: %w", err)
	}

	for _, r := range wf.Regions {
		if err := store.AddRegion(&entities.Region{ID: r.ID, Name: r.Name, Description: r.Description}); err != nil {
			return err
		}
	}
	for i, e := range wf.Entities {
		kind, err := entities.ParseKind(e.Type)
		if err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		ent := &entities.Entity{
			ID:                    store.NewID(kind, e.Name),
			Name:                  e.Name,
			VisualDescription:     e.VisualDescription,
			FunctionalDescription: e.FunctionalDescription,
			Category:              e.Category,
			Rarity:                e.Rarity,
			Region:                e.Region,
			X:                     e.X,
			Y:                     e.Y,
		}
		if err := store.Add(ent, kind, "world_file"); err != nil {
			return err
		}
	}
	logger.Printf("world loaded: %d regions, %d entities", len(wf.Regions), len(wf.Entities))
	return nil
}
