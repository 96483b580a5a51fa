package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"privacyblur/internal/logger"
	"privacyblur/internal/repository"
	"privacyblur/internal/repository/sqlite"
	"privacyblur/internal/repository/yamlstore"
)

// migrate copies the profiles and keyword lists of a YAML profile file into
// the SQLite database used with PROFILE_SOURCE=sqlite.
func main() {
	profilesPath := flag.String("profiles", "configs/profiles.yaml", "YAML profile file")
	dbPath := flag.String("db", "data/privacyblur.db", "Database path")
	defaults := flag.Bool("defaults", false, "Seed the stock profiles instead of reading the YAML file")
	flag.Parse()

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewProfileRepository(db)

	profiles := repository.DefaultProfiles()
	keywords := repository.DefaultKeywordLists()
	source := "stock defaults"
	if !*defaults {
		if _, err := os.Stat(*profilesPath); err != nil {
			log.Fatalf("Profile file not available: %v", err)
		}
		store, err := yamlstore.Open(*profilesPath, logger.New(os.Stderr))
		if err != nil {
			log.Fatalf("Failed to read profiles: %v", err)
		}
		profiles = store.Profiles()
		keywords = store.KeywordLists()
		source = *profilesPath
	}

	fmt.Printf("Migrating profiles from %s to database %s\n", source, *dbPath)
	if err := repository.Seed(repo, profiles, keywords); err != nil {
		log.Fatalf("Failed to seed profiles: %v", err)
	}

	names, err := repo.ProfileNames()
	if err != nil {
		log.Fatalf("Failed to list profiles: %v", err)
	}
	fmt.Printf("Migrated %d keyword lists, database now holds %d profiles:\n", len(keywords), len(names))
	for _, name := range names {
		fmt.Printf("   - %s\n", name)
	}
}
