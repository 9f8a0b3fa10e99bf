// Package gapserver registers the content-gap MCP tools.
package gapserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers all content-gap tools on the given MCP server:
// content_gaps, gap_history, signal_filter, source_cache_clear.
func RegisterTools(server *mcp.Server) {
	registerContentGaps(server)
	registerGapHistory(server)
	registerSignalFilter(server)
	registerSourceCacheClear(server)
}

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 4
