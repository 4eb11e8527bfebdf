// Package config loads, normalizes, and validates w2 configuration data.
//
// It supplies the compiled-in defaults the usage banner falls back to (proxy
// port, local UI host), describes the proxy engine command the lifecycle
// commands launch, and expands user paths including tilde shortcuts. Values are
// read from TOML and honour the WHISTLE_PORT environment fallback.
//
// The Config value is constructed once per invocation and passed explicitly to
// every component that needs it; nothing in the module reads ambient settings.
package config
