package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"agentd/internal/config"
	"agentd/internal/registry"
)

// flagKeys maps persistent flags to config keys. Env vars use the key
// upper-cased with dots replaced, e.g. AGENTD_LOG_LEVEL.
var flagKeys = map[string]string{
	"config":         "config",
	"addr":           "addr",
	"models-dir":     "models_dir",
	"model-priority": "model_priority",
	"preload":        "preload_models",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"workers":        "scheduler.workers",
	"cpu-pool-size":  "scheduler.cpu_pool_size",
	"low-memory":     "resources.low_memory_mode",
	"gpu":            "resources.gpu",
}

func newRootCmd() *cobra.Command {
	v := newViper()
	root := &cobra.Command{
		Use:           "agentd",
		Short:         "Task scheduler and resource manager for the agent backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := config.Defaults()
	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (.yaml, .json or .toml)")
	pf.String("addr", def.Addr, "HTTP listen address, e.g. :8080")
	pf.String("models-dir", def.ModelsDir, "Directory to scan for *.gguf model files")
	pf.String("model-priority", def.ModelPriority, "Eviction priority of discovered models: idle|low|medium|high")
	pf.String("preload", "", "Comma-separated model ids to load at startup")
	pf.String("log-level", def.Log.Level, "Log level: trace|debug|info|warn|error|disabled")
	pf.String("log-format", def.Log.Format, "Log format: console|json")
	pf.Int("workers", def.Scheduler.Workers, "Scheduler worker loops")
	pf.Int("cpu-pool-size", def.Scheduler.CPUPoolSize, "Concurrent CPU-bound tasks")
	pf.Bool("low-memory", def.Resources.LowMemoryMode, "Force low memory mode")
	pf.Bool("gpu", def.Resources.GPU, "Probe nvidia-smi for GPU memory")
	if err := bindFlags(v, pf); err != nil {
		panic(err)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon (default)",
		RunE:  func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context(), v) },
	}
	models := &cobra.Command{
		Use:   "models",
		Short: "List models discovered in the models directory",
		RunE:  func(cmd *cobra.Command, args []string) error { return runModels(cmd, v) },
	}
	check := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the effective configuration and print it",
		RunE:  func(cmd *cobra.Command, args []string) error { return runCheckConfig(cmd, v) },
	}
	root.RunE = serve.RunE
	root.AddCommand(serve, models, check)
	return root
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("agentd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// resolveConfig layers defaults, the config file, env vars and flags, in
// increasing precedence.
func resolveConfig(v *viper.Viper) (config.Config, error) {
	cfg := config.Defaults()
	if path := v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if v.IsSet("addr") {
		cfg.Addr = v.GetString("addr")
	}
	if v.IsSet("models_dir") {
		cfg.ModelsDir = v.GetString("models_dir")
	}
	if v.IsSet("model_priority") {
		cfg.ModelPriority = v.GetString("model_priority")
	}
	if v.IsSet("preload_models") {
		cfg.PreloadModels = splitCSV(v.GetString("preload_models"))
	}
	if v.IsSet("log.level") {
		cfg.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		cfg.Log.Format = v.GetString("log.format")
	}
	if v.IsSet("scheduler.workers") {
		cfg.Scheduler.Workers = v.GetInt("scheduler.workers")
	}
	if v.IsSet("scheduler.cpu_pool_size") {
		cfg.Scheduler.CPUPoolSize = v.GetInt("scheduler.cpu_pool_size")
	}
	if v.IsSet("resources.low_memory_mode") {
		cfg.Resources.LowMemoryMode = v.GetBool("resources.low_memory_mode")
	}
	if v.IsSet("resources.gpu") {
		cfg.Resources.GPU = v.GetBool("resources.gpu")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := resolveConfig(v)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := newLogger(cfg.Log, os.Stderr)
	d, err := newDaemon(cfg, log)
	if err != nil {
		return err
	}
	return d.run(ctx)
}

func runModels(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := resolveConfig(v)
	if err != nil {
		return err
	}
	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAMILY\tQUANT\tSIZE_MB")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.ID, m.Family, m.Quant, m.SizeMB)
	}
	return tw.Flush()
}

func runCheckConfig(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := resolveConfig(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
