// Package main provides the entry point for the vox CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/vox/elevenlabs"
	"github.com/dgnsrekt/vox/internal/cache"
	"github.com/dgnsrekt/vox/tts"
	"github.com/dgnsrekt/vox/ui"
)

const appName = "vox"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	apiKey     string
	voiceFlag  string
	outputPath string
	modelID    string
	noCache    bool

	rootCmd = &cobra.Command{
		Use:   "vox [TEXT]",
		Short: "Turn text into speech on the CLI",
		Long: paragraph(
			fmt.Sprintf("\nTurn text into %s with the ElevenLabs API.", keyword("speech")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadSettings()
		},
		RunE: executeSay,
	}
)

// loadSettings grabs the resolved config values from Viper so flags, env,
// and the config file share one precedence order.
func loadSettings() error {
	apiKey = viper.GetString("api_key")
	voiceFlag = viper.GetString("voice")
	outputPath = viper.GetString("output")
	modelID = viper.GetString("model")
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// textFromArgs assembles the synthesis text from the command line or,
// when piped, from stdin.
func textFromArgs(args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text != "" {
		return text, nil
	}
	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", nil
}

func executeSay(cmd *cobra.Command, args []string) error {
	text, err := textFromArgs(args)
	if err != nil {
		return err
	}
	if text == "" {
		return errors.New("nothing to say: pass TEXT as an argument or pipe it on stdin")
	}

	client, err := elevenlabs.NewClient(apiKey)
	if err != nil {
		return err
	}
	defer client.Close()

	svc, cleanup := newService(client)
	defer cleanup()

	voiceID, err := pickOrResolveVoice(cmd.Context(), svc)
	if err != nil {
		return err
	}
	if voiceID == "" {
		// Picker cancelled.
		return nil
	}

	out, err := homedir.Expand(outputPath)
	if err != nil {
		return fmt.Errorf("unable to expand output path: %w", err)
	}

	req, err := tts.NewRequest(text, voiceID, out)
	if err != nil {
		return err
	}
	if err := svc.GenerateAudio(cmd.Context(), req); err != nil {
		return err
	}

	if info, err := os.Stat(out); err == nil {
		fmt.Printf("Wrote %s to %s\n", humanize.Bytes(uint64(info.Size())), out)
	} else {
		fmt.Println("Wrote", out)
	}
	return nil
}

// pickOrResolveVoice turns the --voice value into a voice id, or runs the
// interactive picker when no voice was given and we have a terminal. An
// empty return with nil error means the picker was cancelled.
func pickOrResolveVoice(ctx context.Context, svc *tts.Service) (string, error) {
	if voiceFlag != "" {
		return resolveVoice(ctx, svc, voiceFlag)
	}

	piped, _ := stdinIsPipe()
	if piped || !term.IsTerminal(int(os.Stdout.Fd())) {
		return "", errors.New("no voice selected: pass --voice, or run `vox voices` to browse")
	}

	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return "", fmt.Errorf("error parsing config: %v", err)
	}
	picked, err := ui.PickVoice(ctx, svc, cfg)
	if err != nil {
		return "", err
	}
	if picked == nil {
		return "", nil
	}
	return picked.ID, nil
}

// resolveVoice maps a --voice value to a voice id. An exact id match or a
// unique name/id search match wins; an unmatched value passes through
// untouched so the API stays the authority on whether the id exists.
func resolveVoice(ctx context.Context, svc *tts.Service, query string) (string, error) {
	voices, err := svc.ListVoices(ctx)
	if err != nil {
		return "", err
	}
	for _, v := range voices {
		if v.ID == query {
			return v.ID, nil
		}
	}
	matches := svc.SearchVoices(query, voices)
	switch len(matches) {
	case 0:
		return query, nil
	case 1:
		return matches[0].ID, nil
	default:
		return "", fmt.Errorf("voice %q is ambiguous: %d matches (try `vox voices %s`)", query, len(matches), query)
	}
}

// newService assembles the TTS service, attaching the audio cache unless
// it is disabled by flag or config.
func newService(client *elevenlabs.Client) (*tts.Service, func()) {
	opts := []tts.ServiceOption{tts.WithModel(modelID)}
	cleanup := func() {}

	if !noCache {
		dir := cacheDir()
		maxMB := viper.GetInt("cache.max_size")
		if dir != "" && maxMB > 0 {
			audioCache, err := cache.New(dir, int64(maxMB)<<20)
			if err != nil {
				log.Warn("audio cache disabled", "err", err)
			} else {
				opts = append(opts, tts.WithCache(audioCache))
				cleanup = func() { _ = audioCache.Close() }
			}
		}
	}
	return tts.NewService(client, opts...), cleanup
}

// cacheDir resolves the audio cache directory: config value first, then
// the user cache dir.
func cacheDir() string {
	if dir := viper.GetString("cache.dir"); dir != "" {
		expanded, err := homedir.Expand(dir)
		if err == nil {
			return expanded
		}
		return dir
	}
	scope := gap.NewScope(gap.User, appName)
	dir, err := scope.CacheDir()
	if err != nil {
		return ""
	}
	return dir
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "ElevenLabs API key (falls back to ELEVENLABS_API_KEY)")
	rootCmd.Flags().StringVarP(&voiceFlag, "voice", "v", "", "voice id, or a search matching exactly one voice")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "destination file for the audio")
	rootCmd.Flags().StringVarP(&modelID, "model", "m", "", "synthesis model")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the synthesized audio cache")

	// Config bindings
	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))

	viper.SetDefault("model", elevenlabs.DefaultModel)
	viper.SetDefault("output", "output.mp3")
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.max_size", 100)

	rootCmd.AddCommand(voicesCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("VOX_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "vox.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
