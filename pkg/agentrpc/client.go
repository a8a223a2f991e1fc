// Package agentrpc wraps the gRPC client to the external Agent Layer: the
// process that actually runs the memory agents (episodic, procedural,
// knowledge_vault, semantic, core, resource) and the meta-memory
// coordinator agent. It implements dispatch.AgentClient so pkg/dispatch
// never depends on gRPC directly.
package agentrpc

import (
	"context"
	"fmt"

	"github.com/mirixhq/mirixcore/pkg/dispatch"
	memoryagentv1 "github.com/mirixhq/mirixcore/proto/memoryagent/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client implements dispatch.AgentClient by calling the Agent Layer over
// gRPC. The transport is insecure (plaintext) on the assumption that the
// Agent Layer runs as a sidecar or on a trusted network segment; upgrade to
// TLS before crossing a network boundary.
type Client struct {
	conn   *grpc.ClientConn
	client memoryagentv1.MemoryAgentServiceClient
}

// New dials addr and wraps the resulting connection.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("agentrpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: memoryagentv1.NewMemoryAgentServiceClient(conn)}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Handle implements dispatch.AgentClient.
func (c *Client) Handle(ctx context.Context, kind dispatch.AgentKind, prompt dispatch.Prompt, meta dispatch.BatchMetadata) (string, error) {
	mode := "coordinator"
	if meta.Mode == dispatch.ModeDirect {
		mode = "direct"
	}
	req := &memoryagentv1.HandleRequest{
		AgentKind:    string(kind),
		UserId:       meta.UserID,
		MessageCount: int32(meta.MessageCount),
		Mode:         mode,
		PromptText:   prompt.Text,
		Attachments:  toProtoAttachments(prompt.Attachments),
	}
	resp, err := c.client.Handle(ctx, req)
	if err != nil {
		return "", fmt.Errorf("agentrpc: handle call for %s: %w", kind, err)
	}
	return resp.GetBody(), nil
}

func toProtoAttachments(atts []dispatch.Attachment) []*memoryagentv1.Attachment {
	if len(atts) == 0 {
		return nil
	}
	out := make([]*memoryagentv1.Attachment, len(atts))
	for i, a := range atts {
		out[i] = &memoryagentv1.Attachment{
			Kind:     a.Kind,
			Uri:      a.URI,
			Data:     a.Data,
			MimeType: a.MimeType,
		}
	}
	return out
}
