// Package usage assembles the startup and status banner shown after a
// lifecycle operation: how to reach the proxy from a device, how to configure
// the device's HTTP/HTTPS proxy, and where the local UI lives.
package usage

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aishuidedabai/whistle/internal/console"
	"github.com/aishuidedabai/whistle/internal/logging"
	"github.com/aishuidedabai/whistle/internal/options"
)

// State selects the status line at the top of the banner.
type State int

const (
	StateStarted State = iota
	StateRestarted
	StateRunning
)

// Presenter renders the usage banner. All fields except Logger are required.
type Presenter struct {
	Name          string
	Version       string
	DocsURL       string
	DefaultPort   int
	DefaultUIHost string
	// Addresses lists host IPv4 addresses; it is called on every render.
	Addresses func() ([]string, error)
	// RuntimeMajor reports the engine runtime's major version. ok=false skips
	// the version warning.
	RuntimeMajor    func() (major int, ok bool)
	MinRuntimeMajor int
	Logger          *slog.Logger
}

// EffectivePort resolves the proxy port from options or the compiled-in default.
func (p *Presenter) EffectivePort(opts options.Options) int {
	if port, ok := opts.Port(); ok {
		return port
	}
	return p.DefaultPort
}

// EffectiveUIHost resolves the local UI host from options or the compiled-in default.
func (p *Presenter) EffectiveUIHost(opts options.Options) string {
	if host, ok := opts.LocalUIHost(); ok && host != "" {
		return host
	}
	return p.DefaultUIHost
}

// Banner returns the full usage banner for opts.
func (p *Presenter) Banner(opts options.Options, state State) []console.Line {
	port := p.EffectivePort(opts)
	product := p.Name + "@" + p.Version

	lines := make([]console.Line, 0, 12)
	switch state {
	case StateRunning:
		lines = append(lines, console.WarnText("[!] "+product+" is running"))
	case StateRestarted:
		lines = append(lines, console.InfoText("[i] "+product+" restarted"))
	default:
		lines = append(lines, console.InfoText("[i] "+product+" started"))
	}

	lines = append(lines, console.Info(
		console.Plain("[i] First, use your device to visit the following URL list, gets the "),
		console.Bold("IP"),
		console.Plain(" of the URL you can visit:"),
	))
	for _, ip := range p.addresses() {
		lines = append(lines, URLLine(ip, port))
	}

	lines = append(lines,
		console.WarnText("    Note: If the following URLs are unable to access, check the server's firewall settings"),
		console.Warn(console.Plain("          For more information, please visit "), console.Bold(p.DocsURL)),
		console.Info(
			console.Plain("[i] Second, configure your device to use "+p.Name+" as its HTTP and HTTPS proxy on "),
			console.Bold("IP:"),
			console.Plain(strconv.Itoa(port)),
		),
		console.Info(
			console.Plain("[i] Last, use "),
			console.Bold("Chrome"),
			console.Plain(" to visit "),
			console.Bold("http://"+p.EffectiveUIHost(opts)+"/"),
			console.Plain(" to get started"),
		),
	)

	if line, ok := p.runtimeWarning(); ok {
		lines = append(lines, line)
	}
	return lines
}

// URLLine renders one reachable URL. The port segment is omitted when port is 0.
func URLLine(ip string, port int) console.Line {
	suffix := "/"
	if port != 0 {
		suffix = ":" + strconv.Itoa(port) + "/"
	}
	return console.Info(console.Plain("    http://"), console.Bold(ip), console.Plain(suffix))
}

func (p *Presenter) addresses() []string {
	if p.Addresses == nil {
		return nil
	}
	addrs, err := p.Addresses()
	if err != nil {
		p.logger().Warn("enumerate network addresses", logging.Error(err),
			logging.String(logging.FieldEventType, "address_enumeration_failed"))
		return nil
	}
	return addrs
}

func (p *Presenter) runtimeWarning() (console.Line, bool) {
	if p.RuntimeMajor == nil || p.MinRuntimeMajor <= 0 {
		return console.Line{}, false
	}
	major, ok := p.RuntimeMajor()
	if !ok || major >= p.MinRuntimeMajor {
		return console.Line{}, false
	}
	msg := fmt.Sprintf("\nWarning: The current runtime version (%d) is too low, install version %d or later, or %s may not be able to intercept HTTPS CONNECTs\n",
		major, p.MinRuntimeMajor, p.Name)
	return console.Warn(console.Bold(msg)), true
}

func (p *Presenter) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.NewNop()
	}
	return p.Logger
}
