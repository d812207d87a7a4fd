package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/tads3ls/internal/cache"
	"github.com/jward/tads3ls/internal/makefile"
)

var flagLibrary string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the library symbol cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached library files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibraryCache()
		if err != nil {
			return outputError("cache list", err)
		}
		defer lib.Close()
		arts, err := lib.Entries()
		if err != nil {
			return outputError("cache list", err)
		}
		total := len(arts)
		return outputResult(CLIResult{Command: "cache list", Results: toCLICacheEntries(arts), TotalCount: &total})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached library files for one library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibraryCache()
		if err != nil {
			return outputError("cache clear", err)
		}
		defer lib.Close()
		if err := lib.Clear(); err != nil {
			return outputError("cache clear", err)
		}
		return outputResult(CLIResult{Command: "cache clear", Results: "cleared " + lib.Dir()})
	},
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&flagLibrary, "library", "", "library variant: adv3|adv3Lite (default: detected from the makefile)")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

// openLibraryCache opens the cache for --library, or for the variant the
// makefile links against.
func openLibraryCache() (*cache.Store, error) {
	variant, root, err := cacheTarget()
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, errors.New("no cache location: set globalStoragePath or pass --storage")
	}
	return cache.Open(root, variant)
}

func cacheTarget() (makefile.Variant, string, error) {
	if flagLibrary != "" && flagStorage != "" {
		variant, err := makefile.ParseVariant(flagLibrary)
		return variant, flagStorage, err
	}
	env, err := setup()
	if err != nil {
		return 0, "", err
	}
	root := env.cfg.GlobalStoragePath
	if flagLibrary != "" {
		variant, err := makefile.ParseVariant(flagLibrary)
		return variant, root, err
	}
	directives, err := makefile.Analyze(env.makefile)
	if err != nil {
		return 0, "", fmt.Errorf("detecting library: %w", err)
	}
	return makefile.DetectVariant(directives), root, nil
}
