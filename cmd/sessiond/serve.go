package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sessiond"
	"pkt.systems/sessiond/internal/appconfig"
	"pkt.systems/sessiond/internal/plugin"
	"pkt.systems/sessiond/schema"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var sandboxPolicy string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the session runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Listen.Addr = addr
			}
			if sandboxPolicy != "" {
				if sandboxPolicy != string(schema.SandboxNever) && sandboxPolicy != string(schema.SandboxAlways) {
					return fmt.Errorf("unknown sandbox policy %q", sandboxPolicy)
				}
				cfg.Sandbox.Policy = sandboxPolicy
			}

			serverCfg := sessiond.ServerConfig{
				Addr:    cfg.Listen.Addr,
				Service: cfg.ServiceSchema(),
				PluginDirs: plugin.Directories{
					User:    cfg.Plugins.UserDirs,
					BuiltIn: cfg.Plugins.BuiltInDirs,
				},
				WatchPlugins:   cfg.Plugins.Watch,
				SandboxBaseDir: cfg.Sandbox.BaseDir,
			}

			server, err := sessiond.New(serverCfg, sessiond.ServerDeps{Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("bridge listening", "addr", serverCfg.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "override the bridge listen address")
	cmd.Flags().StringVar(&sandboxPolicy, "sandbox", "", "override the sandbox policy (never|always)")
	return cmd
}
