package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/vox/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the synthesized audio cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached audio",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		audioCache, err := openCache()
		if err != nil {
			return err
		}
		defer audioCache.Close() //nolint:errcheck

		if err := audioCache.Clear(); err != nil {
			return err
		}
		fmt.Println("Cleared audio cache at", audioCache.Dir())
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the audio cache is holding",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		audioCache, err := openCache()
		if err != nil {
			return err
		}
		defer audioCache.Close() //nolint:errcheck

		stats := audioCache.Stats()
		fmt.Printf("%d entries, %s on disk (%s)\n",
			stats.Entries,
			humanize.Bytes(uint64(stats.Bytes)), //nolint:gosec
			audioCache.Dir(),
		)
		return nil
	},
}

func openCache() (*cache.Cache, error) {
	dir := cacheDir()
	if dir == "" {
		return nil, errors.New("no cache directory configured")
	}
	maxMB := viper.GetInt("cache.max_size")
	return cache.New(dir, int64(maxMB)<<20)
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheStatsCmd)
}
