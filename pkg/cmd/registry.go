// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// NewCatalogs returns the node registry and pattern library. Empty paths use
// the embedded catalogs; a pattern file is resolved against the registry in use.
func NewCatalogs(logger *slog.Logger, catalogPath, patternsPath string) (*registry.Registry, *patterns.Library, error) {
	reg := registry.Default()

	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read node catalog: %w", err)
		}

		reg, err = registry.Load(data)
		if err != nil {
			return nil, nil, err
		}
	}

	if patternsPath == "" && catalogPath == "" {
		lib := patterns.Default()
		logger.Info("Catalogs loaded", "kinds", len(reg.Kinds()), "patterns", len(lib.All()))

		return reg, lib, nil
	}

	data := patterns.Embedded()

	if patternsPath != "" {
		var err error

		data, err = os.ReadFile(patternsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read pattern library: %w", err)
		}
	}

	lib, err := patterns.Load(data, reg)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Catalogs loaded", "kinds", len(reg.Kinds()), "patterns", len(lib.All()))

	return reg, lib, nil
}
