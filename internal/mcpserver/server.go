// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/events"
	"github.com/starford/raido/internal/noteservice"
	"github.com/starford/raido/internal/projectservice"
	"github.com/starford/raido/internal/search"
)

// Server wraps the MCP server with Raido tools. Every completed tool call
// emits ai.session.completed so stream subscribers can refresh views that an
// AI assistant may have changed behind their back.
type Server struct {
	mcp      *server.MCPServer
	notes    *noteservice.Service
	projects *projectservice.Service
	pub      events.Publisher
}

// New creates a new MCP server with all Raido tools registered.
func New(notes *noteservice.Service, projects *projectservice.Service, pub events.Publisher) *Server {
	if pub == nil {
		pub = events.Discard{}
	}
	s := &Server{notes: notes, projects: projects, pub: pub}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Keyword search through note titles, content, and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("projectId", mcp.Description("Optional project to scope the search to (empty for all projects)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note's full content including tags and version."),
		mcp.WithString("projectId", mcp.Required(), mcp.Description("ID of the project owning the note")),
		mcp.WithString("noteId", mcp.Required(), mcp.Description("ID of the note to read")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note in a project. The note starts at version 1 "+
			"and every later edit appends an immutable snapshot to its history."),
		mcp.WithString("projectId", mcp.Required(), mcp.Description("ID of the project to create the note in")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note content")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List all projects with their note counts."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("note_history",
		mcp.WithDescription("List a note's version snapshots, newest first."),
		mcp.WithString("projectId", mcp.Required(), mcp.Description("ID of the project owning the note")),
		mcp.WithString("noteId", mcp.Required(), mcp.Description("ID of the note")),
	), s.noteHistory)

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

// completed publishes ai.session.completed for a finished tool call.
func (s *Server) completed(tool string) {
	s.pub.Publish(events.New(events.AISessionCompleted, map[string]string{
		"tool": tool,
	}))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var projectID *string
	if pid, err := req.RequireString("projectId"); err == nil && pid != "" {
		projectID = &pid
	}

	results, err := s.notes.Search(ctx, projectID, query, search.ModeKeyword, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	s.completed("search_notes")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("projectId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	noteID, err := req.RequireString("noteId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := s.notes.Get(ctx, projectID, noteID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", noteID)), nil
	}
	out, _ := json.MarshalIndent(n, "", "  ")
	s.completed("read_note")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("projectId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var tags []string
	if raw, rawErr := req.RequireString("tags"); rawErr == nil && raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	n, err := s.notes.Create(ctx, projectID, title, content, tags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.completed("create_note")
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", n.ID)), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.projects.List(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(projects, "", "  ")
	s.completed("list_projects")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) noteHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("projectId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	noteID, err := req.RequireString("noteId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	versions, err := s.notes.ListVersions(ctx, projectID, noteID, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(versions, "", "  ")
	s.completed("note_history")
	return mcp.NewToolResultText(string(out)), nil
}
