// Command lizard tracks focus from webcam eye landmarks.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ayusman/lizard/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootFlags are the persistent flags shared by every subcommand. They
// override the file and environment configuration when set.
type rootFlags struct {
	configPath    string
	dataDir       string
	addr          string
	threshold     float64
	targetMinutes int
	cameraID      int
	ratio         string
	logLevel      string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "lizard",
		Short:         "Webcam focus tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "data directory (default ~/.lizard)")
	pf.StringVar(&flags.addr, "addr", "", "HTTP listen address")
	pf.Float64Var(&flags.threshold, "threshold", 0, "eye ratio above which a frame counts as focused")
	pf.IntVar(&flags.targetMinutes, "minutes", 0, "default session length in minutes (1-60)")
	pf.IntVar(&flags.cameraID, "camera", 0, "camera device id")
	pf.StringVar(&flags.ratio, "ratio", "", "ratio strategy: average|merged")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newTrayCmd(flags))
	root.AddCommand(newClassifyCmd(flags))
	return root
}

// loadConfig loads the layered configuration and applies changed flags.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (config.Config, error) {
	if flags.dataDir != "" {
		if err := os.Setenv(config.EnvPrefix+"DATA_DIR", flags.dataDir); err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flags.addr
		case "threshold":
			cfg.Threshold = flags.threshold
		case "minutes":
			cfg.TargetMinutes = flags.targetMinutes
		case "camera":
			cfg.Camera.DeviceID = flags.cameraID
		case "ratio":
			cfg.RatioStrategy = flags.ratio
		case "log-level":
			cfg.Log.Level = flags.logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// pins records which saved settings an explicit flag takes precedence over.
type pins struct {
	threshold bool
	target    bool
}

func pinnedFlags(cmd *cobra.Command) pins {
	fs := cmd.Flags()
	return pins{threshold: fs.Changed("threshold"), target: fs.Changed("minutes")}
}

// findWebDir searches for the dashboard files in common locations.
// It checks: "web", "../web", "../../web", and <data-dir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}
