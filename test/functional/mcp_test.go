package functional_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rfpwatch/rfpwatch/internal/document"
	"github.com/rfpwatch/rfpwatch/internal/domain/rfp"
	"github.com/rfpwatch/rfpwatch/internal/testserver"
)

func callTool(t *testing.T, ts *testserver.TestServer, name string, args map[string]any) json.RawMessage {
	t.Helper()
	result, err := ts.Session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	require.False(t, result.IsError, "Tool %s returned error: %v", name, result.Content)
	require.NotEmpty(t, result.Content)

	tc, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "Tool %s returned no text content", name)
	return json.RawMessage(tc.Text)
}

func callToolExpectError(t *testing.T, ts *testserver.TestServer, name string, args map[string]any, code string) {
	t.Helper()
	result, err := ts.Session.CallTool(context.Background(), &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed at the protocol level", name)
	require.True(t, result.IsError, "Tool %s unexpectedly succeeded", name)
	require.NotEmpty(t, result.Content)

	tc, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.Contains(t, tc.Text, code)
}

func seedRFPs(t *testing.T, ts *testserver.TestServer, recs ...rfp.RFP) {
	t.Helper()
	doc := document.Empty[rfp.RFP]()
	for _, r := range recs {
		doc.Append(r)
	}
	codec := document.Codec[rfp.RFP]{}
	payload, err := codec.Encode(doc, time.Now())
	require.NoError(t, err)
	ts.Store.Seed(rfp.DocumentKey, payload)
}

func TestFunctional_SiteLifecycle(t *testing.T) {
	ts := testserver.New(t)

	created := callTool(t, ts, "add_site", map[string]any{
		"name":     "Metro Portal",
		"base_url": "https://procurement.metro.example",
	})
	var createResp struct {
		Site struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"site"`
	}
	require.NoError(t, json.Unmarshal(created, &createResp))
	require.Equal(t, "metro_portal", createResp.Site.ID)
	require.Equal(t, "testing", createResp.Site.Status)

	callToolExpectError(t, ts, "add_site", map[string]any{
		"name":     "metro PORTAL",
		"base_url": "https://other.example",
	}, "SITE_EXISTS")

	mutated := callTool(t, ts, "mutate_sites", map[string]any{
		"operations": []map[string]any{
			{"record_id": "metro_portal", "action": "delete"},
		},
	})
	require.Contains(t, string(mutated), `"committed":true`)

	listed := callTool(t, ts, "list_sites", nil)
	var listResp struct {
		Sites []json.RawMessage `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(listed, &listResp))
	require.Empty(t, listResp.Sites)

	listed = callTool(t, ts, "list_sites", map[string]any{"include_deleted": true})
	require.NoError(t, json.Unmarshal(listed, &listResp))
	require.Len(t, listResp.Sites, 1)
}

func TestFunctional_FieldMappings(t *testing.T) {
	ts := testserver.New(t)

	callTool(t, ts, "add_site", map[string]any{
		"name":     "Metro Portal",
		"base_url": "https://procurement.metro.example",
	})

	mapped := callTool(t, ts, "map_site_field", map[string]any{
		"site_id": "metro_portal",
		"mapping": map[string]any{
			"alias":          "title",
			"selector":       ".rfp-title",
			"data_type":      "text",
			"training_value": "Road Maintenance RFP",
		},
	})
	var mapResp struct {
		Site struct {
			FieldMappings []struct {
				Alias           string  `json:"alias"`
				ConfidenceScore float64 `json:"confidence_score"`
			} `json:"field_mappings"`
		} `json:"site"`
	}
	require.NoError(t, json.Unmarshal(mapped, &mapResp))
	require.Len(t, mapResp.Site.FieldMappings, 1)
	require.Equal(t, "title", mapResp.Site.FieldMappings[0].Alias)
	require.Equal(t, 1.0, mapResp.Site.FieldMappings[0].ConfidenceScore)

	callToolExpectError(t, ts, "map_site_field", map[string]any{
		"site_id": "metro_portal",
		"mapping": map[string]any{"alias": "title", "selector": ".other"},
	}, "MAPPING_EXISTS")

	unmapped := callTool(t, ts, "unmap_site_field", map[string]any{
		"site_id": "metro_portal",
		"alias":   "title",
	})
	require.NoError(t, json.Unmarshal(unmapped, &mapResp))
	require.Empty(t, mapResp.Site.FieldMappings)

	callToolExpectError(t, ts, "unmap_site_field", map[string]any{
		"site_id": "metro_portal",
		"alias":   "title",
	}, "MAPPING_NOT_FOUND")
}

func TestFunctional_PurgeSite(t *testing.T) {
	ts := testserver.New(t)

	callTool(t, ts, "add_site", map[string]any{
		"name":     "Metro Portal",
		"base_url": "https://procurement.metro.example",
	})

	purged := callTool(t, ts, "purge_site", map[string]any{"id": "metro_portal"})
	require.Contains(t, string(purged), "metro_portal")

	listed := callTool(t, ts, "list_sites", map[string]any{"include_deleted": true})
	var listResp struct {
		Sites []json.RawMessage `json:"sites"`
	}
	require.NoError(t, json.Unmarshal(listed, &listResp))
	require.Empty(t, listResp.Sites)

	callToolExpectError(t, ts, "purge_site", map[string]any{"id": "metro_portal"}, "SITE_NOT_FOUND")
}

func TestFunctional_RFPReviewWorkflow(t *testing.T) {
	ts := testserver.New(t)
	seedRFPs(t, ts,
		rfp.RFP{ID: "rfp-1", Title: "Road resurfacing"},
		rfp.RFP{ID: "rfp-2", Title: "Camera network", Categories: []string{"surveillance"}},
	)

	mutated := callTool(t, ts, "mutate_rfps", map[string]any{
		"operations": []map[string]any{
			{"record_id": "rfp-1", "action": "ignore", "reason": "routine"},
			{"record_id": "rfp-2", "action": "flag", "reason": "vendor watch"},
		},
	})
	require.Contains(t, string(mutated), `"committed":true`)

	listed := callTool(t, ts, "list_rfps", nil)
	var listResp struct {
		RFPs []struct {
			ID                 string `json:"id"`
			ManualReviewStatus string `json:"manual_review_status"`
			HighPriority       bool   `json:"high_priority"`
		} `json:"rfps"`
	}
	require.NoError(t, json.Unmarshal(listed, &listResp))
	require.Len(t, listResp.RFPs, 1)
	require.Equal(t, "rfp-2", listResp.RFPs[0].ID)
	require.Equal(t, "flagged", listResp.RFPs[0].ManualReviewStatus)
	require.True(t, listResp.RFPs[0].HighPriority)

	listed = callTool(t, ts, "list_rfps", map[string]any{"include_ignored": true})
	require.NoError(t, json.Unmarshal(listed, &listResp))
	require.Len(t, listResp.RFPs, 2)
}

func TestFunctional_OfflineQueueAndReconcile(t *testing.T) {
	ts := testserver.New(t)
	ctx := context.Background()
	seedRFPs(t, ts, rfp.RFP{ID: "rfp-1", Title: "Road resurfacing"})

	ts.Store.SetUnavailable(true)
	mutated := callTool(t, ts, "mutate_rfps", map[string]any{
		"operations": []map[string]any{
			{"record_id": "rfp-1", "action": "star"},
		},
	})
	var mutateResp struct {
		Queued  bool   `json:"queued"`
		QueueID string `json:"queue_id"`
	}
	require.NoError(t, json.Unmarshal(mutated, &mutateResp))
	require.True(t, mutateResp.Queued)
	require.NotEmpty(t, mutateResp.QueueID)

	status := callTool(t, ts, "outbox_status", nil)
	require.Contains(t, string(status), `"pending":1`)

	// Reads need the store.
	callToolExpectError(t, ts, "list_rfps", nil, "STORE_UNAVAILABLE")

	ts.Store.SetUnavailable(false)
	stats, err := ts.Reconciler().Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Applied)

	listed := callTool(t, ts, "list_rfps", nil)
	var listResp struct {
		RFPs []struct {
			ID      string `json:"id"`
			Starred bool   `json:"starred"`
		} `json:"rfps"`
	}
	require.NoError(t, json.Unmarshal(listed, &listResp))
	require.Len(t, listResp.RFPs, 1)
	require.True(t, listResp.RFPs[0].Starred)

	status = callTool(t, ts, "outbox_status", nil)
	require.Contains(t, string(status), `"pending":0`)
}
