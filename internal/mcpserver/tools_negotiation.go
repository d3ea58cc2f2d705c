package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"synapse/internal/coordinator"
	"synapse/internal/negotiation"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
)

func (s *Server) registerLifecycleTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_negotiation",
			mcp.WithDescription("Start a buyer/seller negotiation. Agent settings overlay the server defaults."),
			mcp.WithString("topic", mcp.Description("Product being negotiated")),
			mcp.WithString("listed_price", mcp.Description("Decimal listed price, used as the seller opening price when unset")),
			mcp.WithString("first_mover", mcp.Description("buyer|seller, default from server config")),
			mcp.WithNumber("turn_timeout_ms", mcp.Description("Per-turn policy deadline in milliseconds")),
			mcp.WithObject("buyer", mcp.Description("Buyer agent config: aggression, maxRounds, priceMarginPct, allowedPaymentMethods, openingPrice, limitPrice, useLLM")),
			mcp.WithObject("seller", mcp.Description("Seller agent config, same fields as buyer")),
		),
		s.handleStart,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"step_negotiation",
			mcp.WithDescription("Advance a negotiation by exactly one turn."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from start_negotiation")),
		),
		s.handleStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_negotiation",
			mcp.WithDescription("Drive a negotiation until it reaches a deal or no deal."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id from start_negotiation")),
		),
		s.handleRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"close_negotiation",
			mcp.WithDescription("Destroy a negotiation, cancelling any in-flight turn."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleClose,
	)
}

func (s *Server) registerReadTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_transcript",
			mcp.WithDescription("Ordered messages of a negotiation."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithNumber("after_seq", mcp.Description("Only return messages with a higher seq")),
		),
		s.handleTranscript,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_status",
			mcp.WithDescription("Status, turn, agent budgets and outcome of a negotiation."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleStatus,
	)
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := coordinator.StartParams{
		Topic:         strings.TrimSpace(request.GetString("topic", "")),
		FirstMover:    strings.TrimSpace(request.GetString("first_mover", "")),
		TurnTimeoutMs: request.GetInt("turn_timeout_ms", 0),
	}
	if raw := strings.TrimSpace(request.GetString("listed_price", "")); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return toolError("invalid_request", "listed_price must be a decimal"), nil
		}
		params.ListedPrice = p
	}
	args := request.GetArguments()
	for key, dst := range map[string]*json.RawMessage{"buyer": &params.Buyer, "seller": &params.Seller} {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return toolError("invalid_request", key+": "+err.Error()), nil
		}
		*dst = b
	}
	req, err := params.Resolve(s.defaults)
	if err != nil {
		return lifecycleError(err), nil
	}
	snap, err := s.coord.Start(ctx, req)
	if err != nil {
		return lifecycleError(err), nil
	}
	return toolResult(snap), nil
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	res, err := s.coord.Step(ctx, sessionID)
	if err != nil {
		return lifecycleError(err), nil
	}
	return toolResult(res), nil
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	out, err := s.coord.Run(ctx, sessionID)
	if err != nil {
		return lifecycleError(err), nil
	}
	return toolResult(out), nil
}

func (s *Server) handleClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := s.coord.Close(sessionID); err != nil {
		return lifecycleError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "session_id": sessionID}), nil
}

func (s *Server) handleTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	msgs, err := s.coord.Messages(ctx, sessionID)
	if err != nil {
		return lifecycleError(err), nil
	}
	if after := int64(request.GetInt("after_seq", 0)); after > 0 {
		var kept []negotiation.Message
		for _, m := range msgs {
			if m.Seq > after {
				kept = append(kept, m)
			}
		}
		msgs = kept
	}
	return toolResult(transcriptPayload(sessionID, msgs)), nil
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	snap, err := s.coord.Status(sessionID)
	if err != nil {
		return lifecycleError(err), nil
	}
	return toolResult(snap), nil
}

func transcriptPayload(sessionID string, msgs []negotiation.Message) map[string]any {
	if msgs == nil {
		msgs = []negotiation.Message{}
	}
	return map[string]any{"session_id": sessionID, "messages": msgs}
}
