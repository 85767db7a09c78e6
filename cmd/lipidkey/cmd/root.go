// Package cmd provides CLI command implementations
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChrisMcGann/LipidKey/pkg/config"
	"github.com/ChrisMcGann/LipidKey/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile  string
	logJSON  bool
	logLevel string

	// Flags for build command
	outputFile  string
	chunkSize   int
	overwrite   bool
	description string

	// Flags for identify command
	inputFile   string
	dbPath      string
	tolMZ       float64
	tolRT       float64
	tolCCS      float64
	levels      string
	esiMode     string
	norm        string
	noRT        bool
	calibration string
	workers     int
	jsonOutput  bool

	// Flags for mz command
	adducts []string

	v   *viper.Viper
	cfg *config.Config
)

var log = zap.NewNop().Sugar()

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"log-json":    "log.json",
	"log-level":   "log.level",
	"chunk-size":  "build.chunk_size",
	"overwrite":   "build.overwrite",
	"description": "build.description",
	"db":          "database.path",
	"tol-mz":      "identify.tol_mz",
	"tol-rt":      "identify.tol_rt",
	"tol-ccs":     "identify.tol_ccs",
	"level":       "identify.levels",
	"esi-mode":    "identify.esi_mode",
	"norm":        "identify.norm",
	"calibration": "identify.calibration",
	"workers":     "identify.workers",
}

var rootCmd = &cobra.Command{
	Use:   "lipidkey",
	Short: "LipidKey - Lipid feature identification tool",
	Long: `LipidKey annotates LC-IM-MS lipidomics features (m/z, retention time, CCS)
with lipid identities from a reference database of measured and theoretical lipids.

Workflow:
- build a reference database from measured datasets and the theoretical library
- identify a feature table against it, from the most to the least confident level
- inspect single species with mz and databases with summarize`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if v, err = config.New(cfgFile); err != nil {
		return err
	}
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return err
	}
	if cfg, err = config.Load(v); err != nil {
		return err
	}
	if noRT {
		cfg.Identify.IncludeRT = false
	}
	l, err := logging.New(cfg.Log.JSON, cfg.Log.Level)
	if err != nil {
		return err
	}
	log = l
	return nil
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(mzCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(validateCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./lipidkey.toml)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	// Build command flags
	buildCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	buildCmd.Flags().IntVar(&chunkSize, "chunk-size", 10000, "Rows written per transaction")
	buildCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing output file")
	buildCmd.Flags().StringVar(&description, "description", "", "Free text stored with the build")
	buildCmd.MarkFlagRequired("out")

	// Identify command flags
	identifyCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Feature table CSV (required)")
	identifyCmd.Flags().StringVar(&dbPath, "db", "lipids.db", "Reference database")
	identifyCmd.Flags().Float64Var(&tolMZ, "tol-mz", 0.02, "m/z tolerance (Da)")
	identifyCmd.Flags().Float64Var(&tolRT, "tol-rt", 1.0, "Retention time tolerance (min)")
	identifyCmd.Flags().Float64Var(&tolCCS, "tol-ccs", 3.0, "CCS tolerance (%)")
	identifyCmd.Flags().StringVar(&levels, "level", "any", "Confidence level, comma-separated list of levels, or 'any'")
	identifyCmd.Flags().StringVar(&esiMode, "esi-mode", "", "Ionization mode: pos, neg (default: no polarity filter)")
	identifyCmd.Flags().StringVar(&norm, "norm", "l2", "Score norm: l1 or l2")
	identifyCmd.Flags().BoolVar(&noRT, "no-rt", false, "Skip retention time levels in the 'any' cascade")
	identifyCmd.Flags().StringVar(&calibration, "calibration", "", "Retention time calibration CSV (raw_rt,ref_rt)")
	identifyCmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (0 = number of CPUs)")
	identifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	identifyCmd.MarkFlagRequired("in")

	// Mz command flags
	mzCmd.Flags().StringSliceVarP(&adducts, "adduct", "a", []string{"[M+H]+"}, "Adduct ions (repeatable)")
}
