// Package mcpserver exposes the photo collection as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/photolog/internal/apperr"
	"github.com/starford/photolog/internal/capture"
	"github.com/starford/photolog/internal/gallery"
	"github.com/starford/photolog/internal/models"
)

// IndexURI is the resource holding the current collection.
const IndexURI = "photolog://index"

// Server wraps the MCP server with photo tools.
type Server struct {
	mcp     *server.MCPServer
	gallery *gallery.Manager
}

// New creates an MCP server over m with every tool registered.
func New(m *gallery.Manager, version string) *Server {
	s := &Server{gallery: m}

	s.mcp = server.NewMCPServer(
		"photolog",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_photos",
		mcp.WithDescription("List every photo in the collection, newest first."),
	), s.listPhotos)

	s.mcp.AddTool(mcp.NewTool("get_photo",
		mcp.WithDescription("Get one photo entry by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.getPhoto)

	s.mcp.AddTool(mcp.NewTool("capture_photo",
		mcp.WithDescription("Capture a photo and add it to the collection. "+
			"With a source, the image is read from a file path, file:// or data: URI, "+
			"or public http(s) URL. Without one, the server's capture device is used."),
		mcp.WithString("title", mcp.Description("Optional title; defaults to \"Photo <date>\"")),
		mcp.WithString("source", mcp.Description("Optional image source")),
	), s.capturePhoto)

	s.mcp.AddTool(mcp.NewTool("rename_photo",
		mcp.WithDescription("Change the title of a photo."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New, non-blank title")),
	), s.renamePhoto)

	s.mcp.AddTool(mcp.NewTool("delete_photo",
		mcp.WithDescription("Remove a photo from the collection and delete its file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.deletePhoto)

	s.mcp.AddTool(mcp.NewTool("share_photo",
		mcp.WithDescription("Hand a photo to the configured share target."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.sharePhoto)

	s.mcp.AddTool(mcp.NewTool("audit_photos",
		mcp.WithDescription("Report files without an entry and entries whose file is missing."),
	), s.auditPhotos)

	s.mcp.AddResource(
		mcp.NewResource(IndexURI, "Photo index",
			mcp.WithResourceDescription("The current photo collection as JSON."),
			mcp.WithMIMEType("application/json"),
		),
		s.readIndexResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult prefixes the message with the error kind so agents can branch.
func errorResult(err error) *mcp.CallToolResult {
	if kind := apperr.KindOf(err); kind != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listPhotos(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.gallery.Entries())
}

func (s *Server) getPhoto(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, ok := s.gallery.Get(id)
	if !ok {
		return errorResult(apperr.New("get", apperr.KindNotFound, id, errors.New("photo not found"))), nil
	}
	return jsonResult(entry)
}

func (s *Server) capturePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	source := req.GetString("source", "")

	var (
		entry *models.PhotoEntry
		err   error
	)
	if source != "" {
		entry, err = s.gallery.CaptureWith(ctx, capture.Source{URI: source, AllowLocal: true}, title)
	} else {
		entry, err = s.gallery.Capture(ctx, title)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(entry)
}

func (s *Server) renamePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.gallery.UpdateTitle(ctx, id, title); err != nil {
		return errorResult(err), nil
	}
	entry, _ := s.gallery.Get(id)
	return jsonResult(entry)
}

func (s *Server) deletePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.gallery.DeletePhoto(ctx, id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) sharePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	shared, err := s.gallery.SharePhoto(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	if !shared {
		return mcp.NewToolResultText(fmt.Sprintf("share cancelled: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("shared: %s", id)), nil
}

func (s *Server) auditPhotos(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.gallery.Audit(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(report)
}

func (s *Server) readIndexResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(s.gallery.Entries())
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode index: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      IndexURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
