// Package configs provides embedded configuration templates for mosaic.
//
// Templates are embedded at build time using Go's //go:embed directive so
// they are available in all distributions: source builds (go install) and
// binary releases alike.
//
// The templates are used by:
//   - cmd/mosaic/cmd/config.go → creates user config at ~/.config/mosaic/config.yaml
//   - cmd/mosaic/cmd/ingest.go → offers a starter .mosaic.yaml for new libraries
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/mosaic/config.yaml)
//  3. Library config (.mosaic.yaml in the library root)
//  4. Environment variables (MOSAIC_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by `mosaic config init` at ~/.config/mosaic/config.yaml. Holds
// machine-specific settings: embedding provider endpoints, cache backend,
// worker counts.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// LibraryConfigTemplate is the template for library-level configuration.
// Written as .mosaic.yaml in the library root. Holds settings that travel
// with the library: include/exclude globs, fusion tuning, bundle shaping.
//
//go:embed library-config.example.yaml
var LibraryConfigTemplate string
