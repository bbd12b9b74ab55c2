package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/danmuck/packlink/internal/config"
)

func main() {
	kind := flag.String("kind", "pack", "config kind: pack|wand|attenuator|belt|all")
	output := flag.String("output", "", "output path for config template (dir when -kind=all)")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to local/<kind>.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	kinds := []string{*kind}
	if *kind == "all" {
		kinds = config.Kinds
	}

	if *validate {
		for _, k := range kinds {
			path := *input
			if path == "" || len(kinds) > 1 {
				path = filepath.Join("local", k+".toml")
			}
			cfg, err := config.LoadNodeConfig(path)
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("Validated %s config at %s (links=%d store=%s)", k, path, len(cfg.Links), cfg.Store.Kind)
		}
		return
	}

	for _, k := range kinds {
		target := *output
		switch {
		case target == "":
			target = filepath.Join("local", k+".toml")
		case len(kinds) > 1:
			target = filepath.Join(target, k+".toml")
		}
		if err := config.WriteTemplate(target, k, *force); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote %s config template to %s", k, target)
	}
}
