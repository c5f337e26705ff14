package mcp

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// ContentType identifies the kind of a content item.
type ContentType string

const (
	ContentText ContentType = "text"
)

// Protocol types
type (
	InitializeArgs struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ClientCapabilities `json:"capabilities"`
		ClientInfo      Implementation     `json:"clientInfo"`
	}

	InitializeReply struct {
		ProtocolVersion string         `json:"protocolVersion"`
		Capabilities    Capabilities   `json:"capabilities"`
		ServerInfo      Implementation `json:"serverInfo"`
		Instructions    string         `json:"instructions,omitempty"`
	}

	ListToolsArgs struct {
		Cursor string `json:"cursor,omitempty"`
	}

	ListToolsReply struct {
		Tools      []ToolInfo `json:"tools"`
		NextCursor string     `json:"nextCursor,omitempty"`
	}

	CallToolArgs struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}

	ListResourcesArgs struct {
		Cursor string `json:"cursor,omitempty"`
	}

	ListResourcesReply struct {
		Resources  []ResourceInfo `json:"resources"`
		NextCursor string         `json:"nextCursor,omitempty"`
	}

	ReadResourceArgs struct {
		URI string `json:"uri"`
	}

	// ToolInfo describes a registered tool without its handler.
	ToolInfo struct {
		Name        string             `json:"name"`
		Description string             `json:"description,omitempty"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}

	// ResourceInfo describes a registered resource without its handler.
	ResourceInfo struct {
		URI         string `json:"uri"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		MimeType    string `json:"mimeType,omitempty"`
	}

	// ToolResult is the envelope returned by a tool invocation.
	ToolResult struct {
		Content []Content `json:"content"`
	}

	// ResourceResult is the envelope returned by a resource read.
	ResourceResult struct {
		Contents []Content `json:"contents"`
	}

	Content struct {
		Type     ContentType `json:"type"`
		Text     string      `json:"text"`
		MimeType string      `json:"mimeType,omitempty"`
		URI      string      `json:"uri,omitempty"`
	}

	Implementation struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	ListChangedCapability struct {
		ListChanged bool `json:"listChanged,omitempty"`
	}

	Capabilities struct {
		Experimental map[string]any         `json:"experimental,omitempty"`
		Logging      *struct{}              `json:"logging,omitempty"`
		Tools        *ListChangedCapability `json:"tools,omitempty"`
		Resources    *ListChangedCapability `json:"resources,omitempty"`
	}

	ClientCapabilities struct {
		Experimental map[string]any `json:"experimental,omitempty"`
		Sampling     *struct{}      `json:"sampling,omitempty"`
	}
)

// TextContent returns a text content item.
func TextContent(text string) Content {
	return Content{Type: ContentText, Text: text}
}

// JSONContent marshals v and returns it as a text content item.
func JSONContent(v any) (Content, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Content{}, err
	}
	return TextContent(string(data)), nil
}
