// Package mcp exposes the paper service as MCP tools over stdio, so
// agent clients can drive the dialogue and fetch papers without the
// HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/paperforge/internal/audit"
	"github.com/hazyhaar/paperforge/internal/auth"
	"github.com/hazyhaar/paperforge/internal/db"
	"github.com/hazyhaar/paperforge/internal/export"
	"github.com/hazyhaar/paperforge/internal/paper"
)

// NewServer creates an MCPServer with all paper tools registered.
func NewServer(store *db.DB, generator *paper.Generator, auditLog audit.Logger, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"paperforge",
		version,
		server.WithToolCapabilities(true),
	)

	registerStartPaper(srv, generator, auditLog)
	registerSendMessage(srv, generator, auditLog)
	registerGeneratePaper(srv, generator, auditLog)
	registerRegenerateSection(srv, generator, auditLog)
	registerGetPaper(srv, store, generator)
	registerExportPaper(srv, store)
	registerListSessions(srv, store)

	return srv
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

func registerStartPaper(srv *server.MCPServer, generator *paper.Generator, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]string{"type": "string", "description": "Working title for the paper"},
		},
	})
	tool := mcp.NewToolWithRawSchema("start_paper", "Open a new paper session and get the opening questions", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		res, err := generator.StartNewPaper(ctx, auth.DefaultUserID, stringArg(args, "title"), nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logAction(auditLog, "paper.start", res.SessionID, "")
		return jsonResult(res)
	})
}

func registerSendMessage(srv *server.MCPServer, generator *paper.Generator, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"session_id": map[string]string{"type": "string", "description": "Paper session ID"},
			"message":    map[string]string{"type": "string", "description": "The user's answer or supplementary information"},
		},
		"required": []string{"session_id", "message"},
	})
	tool := mcp.NewToolWithRawSchema("send_message", "Send one dialogue turn; advances collection or triggers generation", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := stringArg(args, "session_id")
		message := stringArg(args, "message")
		if sessionID == "" || message == "" {
			return mcp.NewToolResultError("session_id and message are required"), nil
		}
		res, err := generator.ProcessUserInput(ctx, sessionID, message)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logAction(auditLog, "paper.message", sessionID, res.Status)
		return jsonResult(res)
	})
}

func registerGeneratePaper(srv *server.MCPServer, generator *paper.Generator, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"session_id": map[string]string{"type": "string", "description": "Paper session ID"},
		},
		"required": []string{"session_id"},
	})
	tool := mcp.NewToolWithRawSchema("generate_paper", "Force full paper generation with the information collected so far", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := stringArg(req.GetArguments(), "session_id")
		if sessionID == "" {
			return mcp.NewToolResultError("session_id is required"), nil
		}
		res, err := generator.GenerateNow(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logAction(auditLog, "paper.generate", sessionID, res.Status)
		return jsonResult(res)
	})
}

func registerRegenerateSection(srv *server.MCPServer, generator *paper.Generator, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"session_id": map[string]string{"type": "string", "description": "Paper session ID"},
			"section":    map[string]string{"type": "string", "description": "Section key, e.g. abstract, methodology, conclusion"},
		},
		"required": []string{"session_id", "section"},
	})
	tool := mcp.NewToolWithRawSchema("regenerate_section", "Rerun generation for a single paper section", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		sessionID := stringArg(args, "session_id")
		section := stringArg(args, "section")
		res, err := generator.RegenerateSection(ctx, sessionID, section)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		logAction(auditLog, "paper.regenerate", sessionID, section)
		return jsonResult(res)
	})
}

func registerGetPaper(srv *server.MCPServer, store *db.DB, generator *paper.Generator) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"session_id": map[string]string{"type": "string", "description": "Paper session ID"},
		},
		"required": []string{"session_id"},
	})
	tool := mcp.NewToolWithRawSchema("get_paper", "Get a session's generated sections and status", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := stringArg(req.GetArguments(), "session_id")
		s, err := store.GetSession(sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, status, err := generator.GetPaperContent(sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{
			"session_id": sessionID,
			"title":      s.Title,
			"stage":      s.Stage,
			"status":     status,
			"content":    content,
		})
	})
}

func registerExportPaper(srv *server.MCPServer, store *db.DB) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"session_id": map[string]string{"type": "string", "description": "Paper session ID"},
			"format":     map[string]string{"type": "string", "description": "markdown (default) or text"},
		},
		"required": []string{"session_id"},
	})
	tool := mcp.NewToolWithRawSchema("export_paper", "Render the paper as a markdown or plain-text document", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		s, err := store.GetSession(stringArg(args, "session_id"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		format, err := export.ParseFormat(stringArg(args, "format"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content := map[string]string{}
		if m, ok := s.Context["paper_content"].(map[string]any); ok {
			for k, v := range m {
				if str, ok := v.(string); ok {
					content[k] = str
				}
			}
		}
		if len(content) == 0 {
			return mcp.NewToolResultError("paper has no generated content yet"), nil
		}
		doc, err := export.Render(s.Title, content, format)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(doc), nil
	})
}

func registerListSessions(srv *server.MCPServer, store *db.DB) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("list_sessions", "List paper sessions, most recently updated first", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions, err := store.ListSessions(auth.DefaultUserID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"sessions": sessions})
	})
}

func logAction(auditLog audit.Logger, action, sessionID, detail string) {
	if auditLog == nil {
		return
	}
	auditLog.LogAsync(&audit.Entry{
		Action:    action,
		Transport: "mcp",
		UserID:    auth.DefaultUserID,
		SessionID: sessionID,
		Detail:    detail,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(blob)), nil
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}
