package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/quantavault/internal/mcp"
	"github.com/forest6511/quantavault/pkg/audit"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd starts the MCP server for AI assistant integration
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server for AI assistant integration",
	Long: `Start the MCP server over stdio. AI agents can generate and score
passwords and read the security report, but never receive stored passwords.

Available tools:
  - password_generate:   Generate a random password
  - passphrase_generate: Generate a word passphrase
  - password_strength:   Score a password (not stored)
  - credential_list:     List credentials with masked passwords (e.g. "****WXYZ")
  - security_report:     Weak, reused and stale password findings

Authentication:
  Set QV_PASSWORD before starting the server. The variable is read once
  and immediately cleared from the environment.

Example MCP configuration:
  {
    "mcpServers": {
      "quantavault": {
        "type": "stdio",
        "command": "/path/to/quantavault",
        "args": ["mcp-server"],
        "env": {
          "QV_PASSWORD": "your-master-password"
        }
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Set up signal handling for graceful shutdown
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ensureUnlocked(ctx, audit.SourceMCP); err != nil {
			return err
		}
		defer lockVault()

		server, err := mcp.NewServer(v, mcp.ServerOptions{
			Owner:          cfg.Vault.Owner,
			Version:        version,
			TwoFactorScore: cfg.Security.TwoFactorScore,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}

		// Run the server
		if err := server.Run(ctx); err != nil {
			// Don't report context canceled as an error
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	},
}
