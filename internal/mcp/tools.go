package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rfpwatch/rfpwatch/internal/batch"
	"github.com/rfpwatch/rfpwatch/internal/domain/rfp"
	"github.com/rfpwatch/rfpwatch/internal/domain/site"
)

func registerTools(server *sdkmcp.Server, cfg Config) {
	registerListRFPs(server, cfg.RFPs)
	registerMutateRFPs(server, cfg.RFPs)
	registerListSites(server, cfg.Sites)
	registerAddSite(server, cfg.Sites)
	registerMutateSites(server, cfg.Sites)
	registerMapSiteField(server, cfg.Sites)
	registerUnmapSiteField(server, cfg.Sites)
	registerPurgeSite(server, cfg.Sites)
	if cfg.Outbox != nil {
		registerOutboxStatus(server, cfg.Outbox)
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var operationsSchema = map[string]any{
	"type":        "array",
	"description": "Per-record operations, applied in order within one commit",
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"record_id": map[string]any{"type": "string"},
			"action":    map[string]any{"type": "string"},
			"reason":    map[string]any{"type": "string"},
		},
		"required": []string{"record_id", "action"},
	},
}

func textResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var res sdkmcp.CallToolResult
		res.Content = []sdkmcp.Content{&sdkmcp.TextContent{Text: fmt.Errorf("marshal: %w", err).Error()}}
		res.IsError = true
		return &res, nil
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(err error) (*sdkmcp.CallToolResult, error) {
	var res sdkmcp.CallToolResult
	res.Content = []sdkmcp.Content{&sdkmcp.TextContent{Text: mapError(err).Error()}}
	res.IsError = true
	return &res, nil
}

// --- list_rfps ---

type listRFPsReq struct {
	IncludeIgnored    bool `json:"include_ignored"`
	ClosingWithinDays int  `json:"closing_within_days"`
}

type rfpView struct {
	rfp.RFP
	HighPriority bool `json:"high_priority,omitempty"`
	ClosingSoon  bool `json:"closing_soon,omitempty"`
}

func registerListRFPs(server *sdkmcp.Server, svc RFPService) {
	tool := &sdkmcp.Tool{
		Name:        "list_rfps",
		Description: "Read the RFP collection, optionally hiding ignored records",
		InputSchema: inputSchema(map[string]any{
			"include_ignored":     map[string]any{"type": "boolean", "description": "Include records marked ignored"},
			"closing_within_days": map[string]any{"type": "integer", "description": "Window used for the closing_soon annotation (default 7)"},
		}, nil),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r listRFPsReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return errorResult(fmt.Errorf("invalid arguments: %w", err))
			}
		}
		if r.ClosingWithinDays <= 0 {
			r.ClosingWithinDays = 7
		}

		doc, err := svc.Read(ctx)
		if err != nil {
			return errorResult(err)
		}

		now := time.Now()
		views := make([]rfpView, 0, len(doc.Records))
		for _, rec := range doc.Records {
			if !r.IncludeIgnored && rec.ManualReviewStatus == rfp.ReviewIgnored {
				continue
			}
			views = append(views, rfpView{
				RFP:          rec,
				HighPriority: rec.IsHighPriority(),
				ClosingSoon:  rec.IsClosingSoon(now, r.ClosingWithinDays),
			})
		}

		return textResult(map[string]any{
			"metadata": doc.Metadata,
			"rfps":     views,
		})
	})
}

// --- mutate_rfps ---

type mutateReq struct {
	Operations []batch.Operation `json:"operations"`
}

func registerMutateRFPs(server *sdkmcp.Server, svc RFPService) {
	tool := &sdkmcp.Tool{
		Name:        "mutate_rfps",
		Description: "Apply review actions (ignore, unignore, star, unstar, flag, unflag) to RFPs in one atomic batch",
		InputSchema: inputSchema(map[string]any{
			"operations": operationsSchema,
		}, []string{"operations"}),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r mutateReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err))
		}

		res, err := svc.Mutate(ctx, r.Operations)
		if err != nil {
			return errorResult(err)
		}
		return textResult(res)
	})
}

// --- list_sites ---

type listSitesReq struct {
	IncludeDeleted bool `json:"include_deleted"`
}

func registerListSites(server *sdkmcp.Server, svc SiteService) {
	tool := &sdkmcp.Tool{
		Name:        "list_sites",
		Description: "Read the site configuration collection",
		InputSchema: inputSchema(map[string]any{
			"include_deleted": map[string]any{"type": "boolean", "description": "Include tombstoned sites"},
		}, nil),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r listSitesReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return errorResult(fmt.Errorf("invalid arguments: %w", err))
			}
		}

		doc, err := svc.Read(ctx)
		if err != nil {
			return errorResult(err)
		}

		sites := make([]site.SiteConfig, 0, len(doc.Records))
		for _, rec := range doc.Records {
			if !r.IncludeDeleted && rec.Tombstoned() {
				continue
			}
			sites = append(sites, rec)
		}

		return textResult(map[string]any{
			"metadata": doc.Metadata,
			"sites":    sites,
		})
	})
}

// --- add_site ---

func registerAddSite(server *sdkmcp.Server, svc SiteService) {
	tool := &sdkmcp.Tool{
		Name:        "add_site",
		Description: "Register a new scraper target site; the id is derived from the name",
		InputSchema: inputSchema(map[string]any{
			"name":              map[string]any{"type": "string", "description": "Display name, e.g. \"Metro Portal\""},
			"base_url":          map[string]any{"type": "string", "description": "Main website URL"},
			"main_rfp_page_url": map[string]any{"type": "string", "description": "RFP listing page (defaults to base_url)"},
			"sample_rfp_url":    map[string]any{"type": "string", "description": "A specific RFP used for testing"},
			"description":       map[string]any{"type": "string"},
		}, []string{"name", "base_url"}),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r site.CreateRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err))
		}

		res, err := svc.Create(ctx, r)
		if err != nil {
			return errorResult(err)
		}
		return textResult(res)
	})
}

// --- mutate_sites ---

func registerMutateSites(server *sdkmcp.Server, svc SiteService) {
	tool := &sdkmcp.Tool{
		Name:        "mutate_sites",
		Description: "Apply lifecycle actions (disable, activate, delete, restore) to sites in one atomic batch; delete is a soft delete",
		InputSchema: inputSchema(map[string]any{
			"operations": operationsSchema,
		}, []string{"operations"}),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r mutateReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err))
		}

		res, err := svc.Mutate(ctx, r.Operations)
		if err != nil {
			return errorResult(err)
		}
		return textResult(res)
	})
}

// --- map_site_field / unmap_site_field ---

type mapSiteFieldReq struct {
	SiteID  string            `json:"site_id"`
	Mapping site.FieldMapping `json:"mapping"`
}

func registerMapSiteField(server *sdkmcp.Server, svc SiteService) {
	tool := &sdkmcp.Tool{
		Name:        "map_site_field",
		Description: "Bind a field mapping (alias to selector) on a site; duplicate aliases are rejected",
		InputSchema: inputSchema(map[string]any{
			"site_id": map[string]any{"type": "string", "description": "Site id"},
			"mapping": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"alias":          map[string]any{"type": "string", "description": "Field name, e.g. \"title\""},
					"selector":       map[string]any{"type": "string", "description": "CSS selector of the field on the page"},
					"data_type":      map[string]any{"type": "string"},
					"training_value": map[string]any{"type": "string", "description": "Sample value used to train the mapping"},
				},
				"required": []string{"alias", "selector"},
			},
		}, []string{"site_id", "mapping"}),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r mapSiteFieldReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err))
		}

		updated, err := svc.AddFieldMapping(ctx, r.SiteID, r.Mapping)
		if err != nil {
			return errorResult(err)
		}
		return textResult(map[string]any{"site": updated})
	})
}

type unmapSiteFieldReq struct {
	SiteID string `json:"site_id"`
	Alias  string `json:"alias"`
}

func registerUnmapSiteField(server *sdkmcp.Server, svc SiteService) {
	tool := &sdkmcp.Tool{
		Name:        "unmap_site_field",
		Description: "Remove a field mapping from a site by alias",
		InputSchema: inputSchema(map[string]any{
			"site_id": map[string]any{"type": "string", "description": "Site id"},
			"alias":   map[string]any{"type": "string", "description": "Alias of the mapping to remove"},
		}, []string{"site_id", "alias"}),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r unmapSiteFieldReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err))
		}

		updated, err := svc.RemoveFieldMapping(ctx, r.SiteID, r.Alias)
		if err != nil {
			return errorResult(err)
		}
		return textResult(map[string]any{"site": updated})
	})
}

// --- purge_site ---

type purgeSiteReq struct {
	ID string `json:"id"`
}

func registerPurgeSite(server *sdkmcp.Server, svc SiteService) {
	tool := &sdkmcp.Tool{
		Name:        "purge_site",
		Description: "Physically remove a site record; unlike the delete action this leaves no tombstone",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Site id"},
		}, []string{"id"}),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var r purgeSiteReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err))
		}

		if err := svc.HardDelete(ctx, r.ID); err != nil {
			return errorResult(err)
		}
		return textResult(map[string]any{"purged": r.ID})
	})
}

// --- outbox_status ---

func registerOutboxStatus(server *sdkmcp.Server, reader OutboxReader) {
	tool := &sdkmcp.Tool{
		Name:        "outbox_status",
		Description: "List locally queued mutations awaiting reconciliation",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	server.AddTool(tool, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		entries, err := reader.ListPending(ctx)
		if err != nil {
			return errorResult(err)
		}
		return textResult(map[string]any{
			"pending": len(entries),
			"entries": entries,
		})
	})
}
