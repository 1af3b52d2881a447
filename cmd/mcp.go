package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	mcpserver "supportdesk/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the store tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pg, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pg.Close()

		registry := newToolRegistry(cfg, newCommerce(cfg), newStores(pg))
		srv, err := mcpserver.NewServer(registry)
		if err != nil {
			return err
		}
		log.Info().Int("tools", len(registry.Tools())).Msg("MCP server started on stdio")
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
