// Package app provides the toolscope command-line application.
package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonwraymond/toolscope/config"
	"github.com/jonwraymond/toolscope/observe"
)

// version is set at build time with -ldflags "-X .../app.version=...".
var version = "dev"

func getVersion() string {
	return version
}

// NewRootCmd creates the toolscope root command.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:               "toolscope",
		DisableAutoGenTag: true,
		Short:             "Group-based filtering for MCP tool listings",
		Long: `toolscope removes tools a caller may not see from MCP tools/list responses.

It runs either behind a gateway, receiving interceptor envelopes on ` + InterceptPath + `,
or in front of an upstream MCP server as a filtering reverse proxy. Caller groups
come from the JWT in the Authorization header and are mapped to permissions by a
group -> tokens document.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or JSON configuration file")

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// flagBindings maps serve flags to configuration keys.
var flagBindings = map[string]string{
	"listen":           "listen",
	"upstream":         "upstream",
	"permissions-file": "permissions.file",
	"enforce-calls":    "proxy.enforceCalls",
	"log-level":        "observe.logging.level",
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the toolscope server",
		Long: `Start the toolscope HTTP server.

Endpoints:
  POST ` + InterceptPath + `   gateway interceptor envelopes
  GET  /healthz, /readyz, /health   health probes
  GET  /metrics   Prometheus metrics
  *    /*         filtering reverse proxy (when --upstream is set)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			srv, err := NewServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().String("listen", "", "Address to listen on (default :8080)")
	cmd.Flags().String("upstream", "", "Upstream MCP server URL; enables reverse-proxy mode")
	cmd.Flags().String("permissions-file", "", "Path to the group permission document")
	cmd.Flags().Bool("enforce-calls", false, "Reject tools/call for tools the caller cannot see")
	cmd.Flags().String("log-level", "", "Log level: debug, info, warn or error")
	bindFlags(cmd, v)

	return cmd
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and the permission document",
		Long: `Load the configuration and the permission document and report what would be served.

Configuration errors fail the command. Permission document problems are reported
but do not, matching serve, which falls back to the guest default.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}

			logger := observe.NewLoggerWithWriter("warn", cmd.ErrOrStderr())
			table, source := config.LoadPermissionTable(cmd.Context(), cfg.Permissions, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid")
			fmt.Fprintf(out, "  Listen: %s\n", cfg.Listen)
			if cfg.ProxyEnabled() {
				fmt.Fprintf(out, "  Upstream: %s (enforce calls: %t)\n", cfg.Upstream, cfg.Proxy.EnforceCalls)
			}
			fmt.Fprintf(out, "  Permissions: %s, %d groups [%s]\n", source, table.Len(), strings.Join(table.Groups(), ", "))
			if skipped := table.Skipped(); len(skipped) > 0 {
				fmt.Fprintf(out, "  Skipped: [%s]\n", strings.Join(skipped, ", "))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "toolscope version: %s\n", getVersion())
		},
	}
}

// bindFlags binds each serve flag to its configuration key. A flag only
// overrides file and environment values when it is set.
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	for flag, key := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(v, path)
}
