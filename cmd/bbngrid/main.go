package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/collect"
	"github.com/san-kum/bbngrid/internal/config"
	"github.com/san-kum/bbngrid/internal/grid"
	"github.com/san-kum/bbngrid/internal/storage"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	dataDir    string

	preset     string
	gridFile   string
	folder     string
	tag        string
	workers    int
	timeout    time.Duration
	network    string
	executable string
	rates      []string
	useTUI     bool
	listen     string

	format     string
	withSeries bool

	force bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bbngrid",
		Short:         "run grids of BBN simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "log format (text|json)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "directory holding batch folders")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a grid of simulations",
		Args:  cobra.NoArgs,
		RunE:  runGrid,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use a preset grid")
	runCmd.Flags().StringVar(&gridFile, "grid", "", "grid definition file (yaml)")
	runCmd.Flags().StringVar(&folder, "folder", "", "output folder (default <data>/<tag>)")
	runCmd.Flags().StringVar(&tag, "tag", "", "batch tag (default current time)")
	runCmd.Flags().StringVar(&network, "network", string(card.SmallNet), "reaction network")
	runCmd.Flags().StringArrayVar(&rates, "rate", nil, "rate override reaction:correction[:factor], repeatable")
	addExecFlags(runCmd.Flags())

	resumeCmd := &cobra.Command{
		Use:   "resume [folder]",
		Short: "run a saved batch again in place",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeBatch,
	}
	addExecFlags(resumeCmd.Flags())

	openCmd := &cobra.Command{
		Use:   "open [folder]",
		Short: "print the results of a batch",
		Args:  cobra.ExactArgs(1),
		RunE:  openBatch,
	}
	openCmd.Flags().StringVar(&format, "format", "table", "output format (table|json|csv)")
	openCmd.Flags().BoolVar(&withSeries, "series", false, "include nuclide series (json)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored batches",
		Args:  cobra.NoArgs,
		RunE:  listBatches,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available grid presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ListPresets() {
				def := config.GetPreset(name)
				set, err := def.Set()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d jobs\t%s\n", name, set.Total(), def.Description)
			}
			return w.Flush()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [grid.yaml]",
		Short: "check a grid definition and count its jobs",
		Args:  cobra.ExactArgs(1),
		RunE:  validateGrid,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage the configuration file",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) > 0 {
				path = args[0]
			}
			if err := initConfig(path, force); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	configInitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd, resumeCmd, openCmd, listCmd, presetsCmd, validateCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addExecFlags(fs *pflag.FlagSet) {
	fs.IntVar(&workers, "workers", 0, "maximum parallel simulator runs (default from config)")
	fs.DurationVar(&timeout, "timeout", 0, "per-job timeout, 0 disables")
	fs.StringVar(&executable, "exe", config.DefaultExecutable, "simulator executable")
	fs.BoolVar(&useTUI, "tui", false, "show the interactive progress view")
	fs.StringVar(&listen, "listen", "", "serve status, stop and metrics on this address")
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("timeout") {
		cfg.JobTimeout = timeout
	}
	if flags.Changed("exe") {
		cfg.Executable = executable
	}
	if flags.Changed("network") {
		cfg.Network = network
	}
	if flags.Changed("listen") {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := config.ConfigureLogging(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultConfigFile = "bbngrid.yaml"

// initConfig writes the default configuration to path.
func initConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	return config.Save(path, config.DefaultConfig())
}

// parseRate reads reaction:correction[:factor].
func parseRate(s string) (card.RateOverride, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return card.RateOverride{}, fmt.Errorf("rate %q: want reaction:correction[:factor]", s)
	}
	reaction, err := strconv.Atoi(parts[0])
	if err != nil {
		return card.RateOverride{}, fmt.Errorf("rate %q: reaction: %w", s, err)
	}
	correction, err := strconv.Atoi(parts[1])
	if err != nil {
		return card.RateOverride{}, fmt.Errorf("rate %q: correction: %w", s, err)
	}
	r := card.RateOverride{Reaction: reaction, Correction: correction, Factor: 1}
	if len(parts) == 3 {
		if r.Factor, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return card.RateOverride{}, fmt.Errorf("rate %q: factor: %w", s, err)
		}
	}
	return r, nil
}

func gridDefinition() (*grid.Definition, error) {
	switch {
	case gridFile != "" && preset != "":
		return nil, fmt.Errorf("--grid and --preset are mutually exclusive")
	case gridFile != "":
		return grid.LoadDefinition(gridFile)
	case preset != "":
		def := config.GetPreset(preset)
		if def == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		return def, nil
	}
	return config.GetPreset("default"), nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	def, err := gridDefinition()
	if err != nil {
		return err
	}
	set, err := def.Set()
	if err != nil {
		return err
	}

	if tag == "" {
		tag = time.Now().Format(card.TagLayout)
	}
	out := folder
	if out == "" {
		out = storage.New(cfg.DataDir).Folder(tag)
	}

	net := card.Network(cfg.Network)
	common := card.DefaultCommon(card.NewTemplates(out, tag))
	common.Network = net
	common.StoredNuclides = card.NetworkNuclides(net)
	for _, s := range rates {
		r, err := parseRate(s)
		if err != nil {
			return err
		}
		common.Rates = append(common.Rates, r)
	}
	if err := common.Validate(); err != nil {
		return err
	}

	return execute(cmd.Context(), cfg, common, set)
}

func resumeBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	def, err := storage.Load(args[0])
	if err != nil {
		return err
	}
	set, err := def.Set()
	if err != nil {
		return err
	}
	return execute(cmd.Context(), cfg, &def.Common, set)
}

func openBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	def, err := storage.Load(args[0])
	if err != nil {
		return err
	}
	jobs, err := def.Jobs()
	if err != nil {
		return err
	}
	res, err := collect.Open(jobs, collect.Options{
		Templates:  def.Common.Templates,
		Executable: cfg.Executable,
		Markers:    cfg.Markers,
	})
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return storage.ExportJSON(os.Stdout, def.Tag, res, withSeries)
	case "csv":
		return storage.ExportCSV(os.Stdout, res)
	case "table":
		printTable(res)
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func printTable(res *collect.Results) {
	os.Stdout.Write(collect.FormatAggregate(res.Header, res.Rows))
	if s := res.Summary; s != nil && !s.Complete() {
		fmt.Fprintf(os.Stderr, "\n%d of %d jobs failed, see %s\n", len(s.Failed), s.Total, s.Remediation)
	}
}

func listBatches(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	batches, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}

	if len(batches) == 0 {
		fmt.Println("no batches found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCREATED\tJOBS\tNETWORK\tSTATUS\tFOLDER")
	for _, b := range batches {
		status := "not finished"
		switch {
		case b.Failures:
			status = "failures"
		case b.Done:
			status = "done"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			b.Tag,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
			b.Jobs,
			b.Network,
			status,
			b.Folder,
		)
	}
	return w.Flush()
}

func validateGrid(cmd *cobra.Command, args []string) error {
	def, err := grid.LoadDefinition(args[0])
	if err != nil {
		return err
	}
	set, err := def.Set()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GRID\tJOBS")
	for _, id := range set.IDs() {
		fmt.Fprintf(w, "%d\t%d\n", id, set.Count(id))
	}
	fmt.Fprintf(w, "total\t%d\n", set.Total())
	return w.Flush()
}
