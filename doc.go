/*
Package mcp implements a small Model Context Protocol server core: a
registry of named tools and URI-addressed resources, schema validation of
tool arguments, and dispatch of invocations to handlers.

Registry

Tools and resources are registered once at startup. Names and URIs are
unique; a second registration fails with *DuplicateNameError or
*DuplicateURIError and the first entry is kept.

    reg := mcp.NewRegistry("example", "1.0.0")

    err := reg.RegisterTool("greet", "Say hello",
        mcp.Schema(mcp.String("name", "Who to greet")),
        mcp.TypedTool(func(ctx context.Context, in struct {
            Name string `json:"name"`
        }) ([]mcp.Content, error) {
            return []mcp.Content{mcp.TextContent("hello " + in.Name)}, nil
        }))

    err = reg.RegisterResource("example://motd", "Message of the day",
        "text/plain", mcp.StaticText("be kind"))

Dispatch

InvokeTool and InvokeResource return typed errors (*NotFoundError,
*ValidationError, *HandlerError). Dispatch takes a transport-neutral
Request envelope and never fails: errors come back as
{"error":{"kind":...,"message":...}}.

Serving

NewServer binds a registry to JSON-RPC 2.0 (initialize, tools/list,
tools/call, resources/list, resources/read, dispatch) and seals it.
ServeConn serves one newline-delimited stream, such as stdio:

    srv := mcp.NewServer(reg)
    err := srv.ServeTransport(mcp.NewStdioTransport(ctx))

Notifications

The registry emits notifications/tools/list_changed and
notifications/resources/list_changed on registration, and
notifications/message when a dispatch fails. Subscribe with
Registry.Handle.
*/
package mcp
