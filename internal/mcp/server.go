// Package mcp exposes the persistence core to dashboard clients over the
// Model Context Protocol. It is the UI boundary: per collection, a read of
// the whole document and a batched mutate. No version token crosses this
// boundary.
package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/domain/rfp"
	"github.com/rfpwatch/rfpwatch/internal/domain/site"
	"github.com/rfpwatch/rfpwatch/internal/outbox"
)

// RFPService defines the RFP operations needed by the tools.
type RFPService interface {
	Read(ctx context.Context) (*document.Collection[rfp.RFP], error)
	Mutate(ctx context.Context, ops []batch.Operation) (*rfp.MutateResult, error)
}

// SiteService defines the site operations needed by the tools.
type SiteService interface {
	Read(ctx context.Context) (*document.Collection[site.SiteConfig], error)
	Create(ctx context.Context, req site.CreateRequest) (*site.CreateResult, error)
	Mutate(ctx context.Context, ops []batch.Operation) (*site.MutateResult, error)
	AddFieldMapping(ctx context.Context, siteID string, m site.FieldMapping) (*site.SiteConfig, error)
	RemoveFieldMapping(ctx context.Context, siteID, alias string) (*site.SiteConfig, error)
	HardDelete(ctx context.Context, id string) error
}

// OutboxReader exposes the pending queue for status reporting.
type OutboxReader interface {
	ListPending(ctx context.Context) ([]outbox.Entry, error)
}

// Config contains everything the server needs.
type Config struct {
	RFPs   RFPService
	Sites  SiteService
	Outbox OutboxReader
	Logger *slog.Logger
}

// NewServer creates and configures the MCP server with all tools.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "rfpwatch",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerTools(server, cfg)
	return server
}

const serverInstructions = `rfpwatch manages a procurement-monitoring dataset stored as versioned
JSON documents. Use list_rfps/list_sites to read, mutate_rfps/mutate_sites
to apply review and lifecycle actions in batches, add_site to register
a new scraper target, and map_site_field/unmap_site_field to manage a
site's field mappings. Mutations are applied atomically per document; when
the backing store is unreachable they are queued locally and reported as
queued.`
