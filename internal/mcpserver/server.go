// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the story catalog as tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/newsservice"
	"github.com/starford/gazette/internal/parser"
	"github.com/starford/gazette/internal/policy"
)

const formatURI = "gazette://story-format"

// Server wraps the MCP server with Gazette tools. Every call is made on
// behalf of one configured actor.
type Server struct {
	mcp   *server.MCPServer
	svc   *newsservice.Service
	actor policy.Actor
}

// storySummary is one entry of list_stories and search_stories.
type storySummary struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Headline string `json:"headline"`
	Author   string `json:"author"`
	Public   bool   `json:"public"`
	Date     string `json:"date,omitempty"`
}

// New creates a new MCP server with all Gazette tools registered.
func New(svc *newsservice.Service, actor policy.Actor, version string) *Server {
	s := &Server{svc: svc, actor: actor}

	s.mcp = server.NewMCPServer(
		"Gazette",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_stories",
		mcp.WithDescription("List the stories the acting user may read, in catalog order."),
	), s.listStories)

	s.mcp.AddTool(mcp.NewTool("read_story",
		mcp.WithDescription("Read one story as a Markdown document with YAML frontmatter."),
		mcp.WithNumber("position", mcp.Required(), mcp.Description("0-based catalog position")),
	), s.readStory)

	s.mcp.AddTool(mcp.NewTool("search_stories",
		mcp.WithDescription("Filter stories. At least one criterion is required; all given criteria must match."),
		mcp.WithString("headline", mcp.Description("Case-sensitive substring of the headline")),
		mcp.WithString("author", mcp.Description("Exact author name")),
		mcp.WithString("dateFrom", mcp.Description("Inclusive lower date bound, YYYY-MM-DD")),
		mcp.WithString("dateTo", mcp.Description("Inclusive upper date bound, YYYY-MM-DD")),
	), s.searchStories)

	s.mcp.AddTool(mcp.NewTool("create_story",
		mcp.WithDescription("Create a story from a Markdown document. Content MUST follow the "+
			"story format contract (get_story_contract tool or the "+formatURI+" resource). "+
			"The author is always the acting user."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown story document")),
	), s.createStory)

	s.mcp.AddTool(mcp.NewTool("delete_story",
		mcp.WithDescription("Delete the story with the given headline. Only its author may delete it."),
		mcp.WithString("headline", mcp.Required(), mcp.Description("Exact headline")),
	), s.deleteStory)

	s.mcp.AddTool(mcp.NewTool("get_story_contract",
		mcp.WithDescription("Returns the story format contract. Call this before creating stories."),
	), s.getStoryContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Story Format Contract",
			mcp.WithResourceDescription("Markdown story format used by read_story and create_story."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// visible keeps the matches the actor may read.
func (s *Server) visible(matches []newsservice.Match) []storySummary {
	out := []storySummary{}
	for _, m := range matches {
		st := m.Story
		if !policy.CanView(s.actor, st) {
			continue
		}
		out = append(out, storySummary{
			Position: m.Position,
			ID:       st.ID,
			Headline: st.Headline,
			Author:   st.Author,
			Public:   st.Public,
			Date:     models.FormatDate(st.Date),
		})
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listStories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.visible(s.svc.Positioned()))
}

func (s *Server) readStory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pos, err := req.RequireInt("position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.svc.GetByPosition(pos)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no story at position %d", pos)), nil
	}
	if !policy.CanView(s.actor, st) {
		return mcp.NewToolResultError("permission denied: story is not public"), nil
	}
	data, err := parser.Render(st)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchStories(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := models.ParseDate(req.GetString("dateFrom", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := models.ParseDate(req.GetString("dateTo", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	found, err := s.svc.FilterPositions(models.Criteria{
		Headline: req.GetString("headline", ""),
		Author:   req.GetString("author", ""),
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.visible(found))
}

func (s *Server) createStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !policy.CanCreate(s.actor.Role) {
		return mcp.NewToolResultError("permission denied: only authors can create stories"), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := parser.Parse([]byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := res.Story()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st.Author = s.actor.Username

	if s.svc.Has(st.Headline) {
		return mcp.NewToolResultError(fmt.Sprintf("story already exists: %s", st.Headline)), nil
	}
	pos, err := s.svc.Create(ctx, st)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: position %d", pos)), nil
}

func (s *Server) deleteStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	headline, err := req.RequireString("headline")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.svc.Get(headline)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", headline)), nil
	}
	if !policy.CanDelete(s.actor, st) {
		return mcp.NewToolResultError("permission denied: only the author can delete a story"), nil
	}
	if _, err := s.svc.Delete(ctx, headline); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", headline)), nil
}

func (s *Server) getStoryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StoryFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     StoryFormatContract,
		},
	}, nil
}
