// Package mcp implements the MCP (Model Context Protocol) server for quantavault.
// AI agents can generate and score passwords and read the security report,
// but never receive stored secrets: credential listings carry masked values only.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forest6511/quantavault/pkg/security"
	"github.com/forest6511/quantavault/pkg/vault"
)

// Server represents the MCP server for quantavault.
type Server struct {
	server  *mcp.Server
	vault   *vault.Vault
	auditor *security.Auditor
	owner   string
	logger  *slog.Logger
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	// Owner is the account whose credentials the tools operate on.
	Owner string

	// Version is reported to clients.
	Version string

	// TwoFactorScore feeds the two-factor component of the security score.
	TwoFactorScore int

	Logger *slog.Logger
}

// NewServer creates a new MCP server over an unlocked vault.
func NewServer(v *vault.Vault, opts ServerOptions) (*Server, error) {
	if v == nil {
		return nil, errors.New("mcp: vault is required")
	}
	if opts.Owner == "" {
		return nil, errors.New("mcp: owner is required")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "quantavault",
			Version: opts.Version,
		},
		nil,
	)

	s := &Server{
		server:  mcpServer,
		vault:   v,
		auditor: security.NewAuditor().WithTwoFactorScore(opts.TwoFactorScore),
		owner:   opts.Owner,
		logger:  opts.Logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "password_generate",
		Description: "Generate a random password. Defaults to 16 characters using lowercase, uppercase, digits and symbols. Returns the password with its strength score.",
	}, s.handlePasswordGenerate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "passphrase_generate",
		Description: "Generate a passphrase of random words and a trailing number joined by a separator. Returns the passphrase with its strength score.",
	}, s.handlePassphraseGenerate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "password_strength",
		Description: "Score a password from 0 to 100 and return its tier (low, medium, high) with improvement hints. The password is not stored.",
	}, s.handlePasswordStrength)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_list",
		Description: "List stored credentials with metadata and a masked secret (e.g. '****WXYZ'). Does NOT return secret values.",
	}, s.handleCredentialList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "security_report",
		Description: "Audit stored credentials for weak, reused and stale passwords. Returns findings with affected credential IDs, a weighted score and suggestions.",
	}, s.handleSecurityReport)
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the vault backend.
func (s *Server) Close() error {
	return s.vault.Close()
}
