package mcp

// Transport selects how the tool server is exposed.
type Transport string

const (
	// TransportStdio serves a single assistant over the process's
	// stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves the MCP Streamable HTTP protocol,
	// mounted on the admin mux.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}
