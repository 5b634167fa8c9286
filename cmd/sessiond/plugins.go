package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/internal/appconfig"
	"pkt.systems/sessiond/internal/plugin"
)

func newPluginsCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List installed language-server plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			registry := plugin.NewRegistry(plugin.Directories{
				User:    cfg.Plugins.UserDirs,
				BuiltIn: cfg.Plugins.BuiltInDirs,
			}, pslog.Ctx(cmd.Context()))
			if err := registry.Refresh(); err != nil {
				return err
			}
			discovered := registry.All()
			if len(discovered) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no plugins installed")
				return err
			}
			for _, p := range discovered {
				state := "enabled"
				if !p.Manifest.IsEnabled() {
					state = "disabled"
				}
				languages := make([]string, 0, len(p.Manifest.Kind.LanguageIDs))
				for _, id := range p.Manifest.Kind.LanguageIDs {
					languages = append(languages, string(id))
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s) [%s]\n\t%s\n",
					p.Manifest.ID, p.Manifest.Version, p.Location, state,
					strings.Join(languages, ", "), p.RootDir)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}
