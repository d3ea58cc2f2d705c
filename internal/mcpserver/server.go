package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"synapse/internal/config"
	"synapse/internal/coordinator"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const transcriptURIPrefix = "negotiation://"

type Server struct {
	coord    *coordinator.Coordinator
	defaults config.NegotiationConfig

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(coord *coordinator.Coordinator, defaults config.NegotiationConfig) *Server {
	mcpSrv := server.NewMCPServer(
		"synapse",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		coord:      coord,
		defaults:   defaults,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerLifecycleTools()
	s.registerReadTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			transcriptURIPrefix+"{session_id}/transcript",
			"negotiation_transcript",
			mcp.WithTemplateDescription("Transcript of a negotiation session by id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, transcriptURIPrefix) || !strings.HasSuffix(raw, "/transcript") {
				return nil, nil
			}
			sessionID := strings.TrimSuffix(strings.TrimPrefix(raw, transcriptURIPrefix), "/transcript")
			if sessionID == "" {
				return nil, nil
			}
			msgs, err := s.coord.Messages(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(transcriptPayload(sessionID, msgs))
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
