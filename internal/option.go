package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mcpMode bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMCP switches the application to MCP stdio mode: no HTTP server, tools
// are served over stdin/stdout.
func WithMCP(enabled bool) Option {
	return func(a *application) {
		a.mcpMode = enabled
	}
}
