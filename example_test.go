package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"

	mcp "github.com/tmc/mockmcp"
)

func Example() {
	// Create a registry
	reg := mcp.NewRegistry("example", "1.0.0")

	// Register a tool
	err := reg.RegisterTool("echo", "Echo the input",
		mcp.Schema(mcp.String("message", "Text to echo")),
		mcp.TypedTool(func(ctx context.Context, in struct {
			Message string `json:"message"`
		}) ([]mcp.Content, error) {
			return []mcp.Content{mcp.TextContent(in.Message)}, nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	// Create server
	server := mcp.NewServer(reg)

	// Set up connection (example uses pipe)
	clientConn, serverConn := net.Pipe()

	// Serve in background
	go server.ServeConn(context.Background(), serverConn)

	// Create client
	c := mcp.NewClient(clientConn)
	defer c.Close()

	// Initialize
	if _, err := c.Initialize(context.Background(), mcp.Implementation{
		Name:    "example-client",
		Version: "1.0.0",
	}); err != nil {
		log.Fatal(err)
	}

	// Call tool
	result, err := c.CallTool(context.Background(), "echo", map[string]string{
		"message": "Hello, World!",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(result.Content[0].Text)
	// Output: Hello, World!
}

func ExampleRegistry_Dispatch() {
	reg := mcp.NewRegistry("example", "1.0.0")
	if err := reg.RegisterResource("example://motd", "Message of the day", "", mcp.StaticText("be kind")); err != nil {
		log.Fatal(err)
	}

	for _, req := range []mcp.Request{
		{Operation: mcp.OpResource, URI: "example://motd"},
		{Operation: mcp.OpTool, Name: "noSuchTool"},
	} {
		out, _ := json.Marshal(reg.Dispatch(context.Background(), req))
		fmt.Println(string(out))
	}
	// Output:
	// {"content":[{"type":"text","text":"be kind","mimeType":"text/plain","uri":"example://motd"}]}
	// {"error":{"kind":"NotFoundError","message":"unknown tool: noSuchTool"}}
}
