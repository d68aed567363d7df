package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/collectdwire/internal/config"
	"github.com/danmuck/collectdwire/internal/logging"
	"github.com/danmuck/collectdwire/internal/observability"
	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type flagValues struct {
	configPath      string
	typesDB         []string
	noBuiltin       bool
	port            int
	workers         int
	maxDatagram     int
	format          string
	metricsTextfile string
	logLevel        string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var fv flagValues
	root := &cobra.Command{
		Use:           "collectdump [flags] FILE...",
		Short:         "Decode collectd binary datagrams from pcap captures or raw payload files",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, fv)
			if err != nil {
				return err
			}
			db, err := loadTypes(cfg)
			if err != nil {
				return err
			}
			results, err := decodeFiles(cmd.Context(), cfg, db, args)
			if err != nil {
				return err
			}
			if err := writeResults(out, cfg.Format, results); err != nil {
				return err
			}
			if cfg.MetricsTextfile != "" {
				if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
					return fmt.Errorf("write metrics textfile: %w", err)
				}
				log.Info().Str("path", cfg.MetricsTextfile).Msg("wrote metrics textfile")
			}
			return nil
		},
	}
	addDumpFlags(root, &fv)
	root.AddCommand(newTypesCmd(out, &fv), newConfigCmd(out))
	return root
}

func addDumpFlags(cmd *cobra.Command, fv *flagValues) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&fv.configPath, "config", "c", "", "TOML config file")
	flags.StringArrayVarP(&fv.typesDB, "types-db", "t", nil, "types.db file, repeatable, later files win")
	flags.BoolVar(&fv.noBuiltin, "no-builtin-types", false, "do not load the embedded types.db")
	flags.IntVarP(&fv.port, "port", "p", config.DefaultPort, "UDP destination port inside pcap input, 0 for any")
	flags.IntVarP(&fv.workers, "workers", "w", config.DefaultWorkers, "files decoded concurrently")
	flags.IntVar(&fv.maxDatagram, "max-datagram", config.DefaultMaxDatagram, "largest accepted datagram in bytes")
	flags.StringVarP(&fv.format, "format", "f", "json", "output format: json|text")
	flags.StringVar(&fv.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	flags.StringVar(&fv.logLevel, "log-level", "", "log level: trace|debug|info|warn|error|off")
}

// resolveConfig loads the config file when given and applies explicitly set
// flags on top of it.
func resolveConfig(cmd *cobra.Command, fv flagValues) (config.DumpConfig, error) {
	cfg := config.Default()
	if fv.configPath != "" {
		loaded, err := config.LoadDumpConfig(fv.configPath)
		if err != nil {
			return config.DumpConfig{}, err
		}
		cfg = loaded
		log.Info().Str("path", fv.configPath).Msg("loaded dump config")
	}

	flags := cmd.Flags()
	if flags.Changed("types-db") {
		cfg.TypesDB = append(cfg.TypesDB, fv.typesDB...)
	}
	if flags.Changed("no-builtin-types") {
		cfg.BuiltinTypes = !fv.noBuiltin
	}
	if flags.Changed("port") {
		if fv.port < 0 || fv.port > 65535 {
			return config.DumpConfig{}, fmt.Errorf("port out of range: %d", fv.port)
		}
		cfg.Port = uint16(fv.port)
	}
	if flags.Changed("workers") {
		cfg.Workers = fv.workers
	}
	if flags.Changed("max-datagram") {
		cfg.MaxDatagram = fv.maxDatagram
	}
	if flags.Changed("format") {
		cfg.Format = strings.ToLower(strings.TrimSpace(fv.format))
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = fv.metricsTextfile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}

	if err := config.ValidateDumpConfig(cfg); err != nil {
		return config.DumpConfig{}, err
	}
	if cfg.LogLevel != "" && !logging.SetLevel(cfg.LogLevel) {
		return config.DumpConfig{}, fmt.Errorf("unknown log level: %q", cfg.LogLevel)
	}
	return cfg, nil
}

// loadTypes builds the types DB once; it is only read afterwards.
func loadTypes(cfg config.DumpConfig) (*typesdb.DB, error) {
	db := typesdb.New()
	if cfg.BuiltinTypes {
		if err := db.LoadBuiltin(); err != nil {
			return nil, err
		}
	}
	for _, path := range cfg.TypesDB {
		if err := db.LoadFile(path); err != nil {
			return nil, err
		}
	}
	log.Info().Int("types", db.Len()).Int("files", len(cfg.TypesDB)).Bool("builtin", cfg.BuiltinTypes).Msg("types db loaded")
	return db, nil
}

func newTypesCmd(out io.Writer, fv *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "types [NAME...]",
		Short: "Print the loaded type definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, *fv)
			if err != nil {
				return err
			}
			db, err := loadTypes(cfg)
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = db.Names()
			}
			for _, name := range names {
				sources, ok := db.Lookup(name)
				if !ok {
					return fmt.Errorf("type not defined: %q", name)
				}
				specs := make([]string, len(sources))
				for i, ds := range sources {
					specs[i] = fmt.Sprintf("%s:%s:%s:%s", ds.Name, strings.ToUpper(ds.Kind.String()), bound(ds.Min), bound(ds.Max))
				}
				fmt.Fprintf(out, "%s\t%s\n", name, strings.Join(specs, ", "))
			}
			return nil
		},
	}
}

func newConfigCmd(out io.Writer) *cobra.Command {
	var validate, force bool
	cmd := &cobra.Command{
		Use:   "config PATH",
		Short: "Write a config template to PATH, or validate PATH with --validate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if validate {
				if _, err := config.LoadDumpConfig(path); err != nil {
					return err
				}
				fmt.Fprintf(out, "validated dump config at %s\n", path)
				return nil
			}
			if err := config.WriteTemplate(path, "dump", force); err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote dump config template to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&validate, "validate", false, "validate an existing config file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
