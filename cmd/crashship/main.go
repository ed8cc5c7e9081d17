package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/crashship"
	"github.com/bft-labs/crashship/internal/cliconfig"
	"github.com/bft-labs/crashship/pkg/log"
)

const longHelp = `Keep a crash dump directory in order.

crashship tracks each dump's upload state in its filename, uploads pending dumps
to a crash server with a bounded number of retries, and sweeps the directory so
it never holds more than the most recent reports.

Configuration is read from $HOME/.crashship/config.toml, then CRASHSHIP_*
environment variables, then flags; later sources win.`

var exampleUsage = strings.TrimSpace(`
  crashship run --crash-dir /var/crash/app --service-url https://crash.example/cr/report --watch
  crashship run --once
  crashship list
  crashship force 1f0c3a9e
  crashship add ./core.dmp --logcat ./app.log --prefix renderer
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli holds the state shared by all subcommands.
type cli struct {
	cfg     crashship.Config
	cfgPath string
	logger  log.Logger
}

func main() {
	c := &cli{cfg: crashship.DefaultConfig()}

	root := &cobra.Command{
		Use:           "crashship",
		Short:         "Upload and prune crash dumps",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.crashship/config.toml)")
	pf.StringVar(&c.cfg.CrashDir, "crash-dir", c.cfg.CrashDir, "crash dump directory")
	pf.StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory for the client id (default: $HOME/.crashship)")
	pf.StringVar(&c.cfg.ServiceURL, "service-url", c.cfg.ServiceURL, "crash upload endpoint")
	pf.StringVar(&c.cfg.ProductName, "product", c.cfg.ProductName, "product name sent with each report")
	pf.StringVar(&c.cfg.ProductVersion, "product-version", c.cfg.ProductVersion, "product version sent with each report")
	pf.StringVar(&c.cfg.ClientID, "client-id", c.cfg.ClientID, "installation id (default: generated once and kept in state-dir)")
	pf.IntVar(&c.cfg.MaxTries, "max-tries", c.cfg.MaxTries, "upload attempts per report")
	pf.DurationVar(&c.cfg.MaxAge, "max-age", c.cfg.MaxAge, "age after which any report is deleted")
	pf.IntVar(&c.cfg.MaxGroups, "max-groups", c.cfg.MaxGroups, "number of most recent reports kept")
	pf.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout per upload")
	pf.BoolVar(&c.cfg.UploadEnabled, "upload-enabled", c.cfg.UploadEnabled, "upload reports; when false they are marked skipped")
	pf.Float64Var(&c.cfg.SampleRate, "sample-rate", c.cfg.SampleRate, "fraction of reports uploaded")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(
		c.runCommand(),
		c.sweepCommand(),
		c.uploadCommand(),
		c.listCommand(),
		c.forceCommand(),
		c.addCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crashship: %v\n", err)
		os.Exit(1)
	}
}

// load applies the config file, then the environment, respecting explicit flags.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	logger, err := crashship.NewZerologLogger(c.cfg.LogLevel)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

// agent builds an agent from the loaded configuration. Commands that upload
// also need a service url and a client id.
func (c *cli) agent(uploads bool, opts ...crashship.Option) (*crashship.Agent, error) {
	if uploads {
		if err := c.cfg.ValidateUpload(); err != nil {
			return nil, err
		}
		if err := crashship.LoadClientID(&c.cfg); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("configuration",
		log.Path(c.cfg.CrashDir),
		log.String("service_url", c.cfg.ServiceURL),
		log.String("product", c.cfg.ProductName),
		log.Int("max_tries", c.cfg.MaxTries),
		log.Duration("max_age", c.cfg.MaxAge),
		log.Int("max_groups", c.cfg.MaxGroups),
		log.Bool("upload_enabled", c.cfg.UploadEnabled))

	opts = append([]crashship.Option{crashship.WithLogger(c.logger)}, opts...)
	a, err := crashship.New(c.cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

func (c *cli) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep and upload on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			var opts []crashship.Option
			if c.cfg.MetricsAddr != "" && !c.cfg.Once {
				opts = append(opts, crashship.WithMetrics("crashship"))
			}
			a, err := c.agent(true, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if c.cfg.Once {
				sweep, batch := a.RunOnce(ctx)
				printSweep(cmd, sweep)
				printBatch(cmd, batch)
				return nil
			}

			if h := a.MetricsHandler(); h != nil {
				srv := c.serveMetrics(h)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if err := a.Start(ctx); err != nil {
				return fmt.Errorf("start agent: %w", err)
			}
			<-ctx.Done()
			c.logger.Info("received signal, stopping...")

			if err := a.Stop(); err != nil {
				return fmt.Errorf("stop agent: %w", err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.DurationVar(&c.cfg.SweepInterval, "sweep-interval", c.cfg.SweepInterval, "delay between retention sweeps")
	f.DurationVar(&c.cfg.UploadInterval, "upload-interval", c.cfg.UploadInterval, "delay between upload batches")
	f.BoolVar(&c.cfg.Watch, "watch", c.cfg.Watch, "upload new dumps as soon as they appear")
	f.StringVar(&c.cfg.MetricsAddr, "metrics-addr", c.cfg.MetricsAddr, "serve Prometheus metrics on this address")
	f.BoolVar(&c.cfg.Once, "once", c.cfg.Once, "sweep and upload once, then exit")
	return cmd
}

func (c *cli) serveMetrics(h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{
		Addr:              c.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("metrics server failed", log.Err(err))
		}
	}()
	c.logger.Info("serving metrics", log.String("addr", c.cfg.MetricsAddr))
	return srv
}

func (c *cli) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			a, err := c.agent(false)
			if err != nil {
				return err
			}
			printSweep(cmd, a.Sweep(cmd.Context()))
			return nil
		},
	}
}

func (c *cli) uploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Run one upload batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			a, err := c.agent(true)
			if err != nil {
				return err
			}
			printBatch(cmd, a.UploadBatch(cmd.Context()))
			return nil
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending reports and completed uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			a, err := c.agent(false)
			if err != nil {
				return err
			}
			uploads, err := a.Uploads(cmd.Context())
			if err != nil {
				return fmt.Errorf("read upload log: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LOCAL ID\tSTATE\tATTEMPTS\tMODIFIED\tREPORT ID")
			for _, f := range a.Pending() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t\n",
					f.LocalID(), f.Role, f.AttemptCount(), f.ModTime.Format(time.RFC3339))
			}
			for _, u := range uploads {
				fmt.Fprintf(w, "%s\t%s\t\t%s\t%s\n",
					u.LocalID, "Uploaded", u.UploadTime.Format(time.RFC3339), u.ReportID)
			}
			return w.Flush()
		},
	}
}

func (c *cli) forceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "force <local-id>",
		Short: "Upload one report now, regardless of consent and attempt limits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			a, err := c.agent(true)
			if err != nil {
				return err
			}
			if err := a.UploadForced(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) addCommand() *cobra.Command {
	var prefix, logcat string
	cmd := &cobra.Command{
		Use:   "add <dump>",
		Short: "Copy a dump written elsewhere into the crash directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			a, err := c.agent(false)
			if err != nil {
				return err
			}
			path, err := a.AddDump(prefix, args[0], logcat)
			if err != nil {
				return fmt.Errorf("add %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "crash", "prefix of the new report name")
	cmd.Flags().StringVar(&logcat, "logcat", "", "diagnostic log stored next to the dump")
	return cmd
}

func printSweep(cmd *cobra.Command, r crashship.SweepResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "sweep: deleted %d (uploaded %d, temporary %d, expired %d, over limit %d), kept %d, failed %d\n",
		r.Total(), r.Deleted["uploaded"], r.Deleted["temporary"], r.Deleted["expired"], r.Deleted["over_limit"],
		r.Kept, r.Failed)
}

func printBatch(cmd *cobra.Command, r crashship.BatchResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "upload: uploaded %d, skipped %d, retried %d, failed %d\n",
		r.Uploaded, r.Skipped, r.Retried, r.Failed)
}
