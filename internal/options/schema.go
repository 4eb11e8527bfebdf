package options

import (
	"fmt"
	"strconv"
)

// Kind is the value type of an option.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Spec describes one command-line option.
type Spec struct {
	Name      string
	Short     string
	Kind      Kind
	ValueName string
	Usage     string
}

// Defaults feeds the help texts that mention a default value.
type Defaults struct {
	Name        string
	Port        int
	LocalUIHost string
	Sockets     int
	TimeoutMS   int
	DNSCacheMS  int
}

// Names of options the lifecycle core reads itself.
const (
	NamePort        = "port"
	NameLocalUIHost = "localUIHost"
	NameStorage     = "storage"
	NameHost        = "host"
	NameBaseDir     = "baseDir"
)

// Schema returns the option table in display order.
func Schema(d Defaults) []Spec {
	return []Spec{
		{Name: NameBaseDir, Short: "D", Kind: KindString, ValueName: "baseDir", Usage: "the base dir of config data"},
		{Name: "ATS", Short: "A", Kind: KindBool, Usage: "generate Root CA for iOS ATS"},
		{Name: "certDir", Short: "z", Kind: KindString, ValueName: "directory", Usage: "custom certificate path"},
		{Name: NameLocalUIHost, Short: "l", Kind: KindString, ValueName: "hostname", Usage: fmt.Sprintf("local ui host (%s by default)", d.LocalUIHost)},
		{Name: "pluginHost", Short: "L", Kind: KindString, ValueName: "hostname", Usage: `plugin ui host (as: "script=a.b.com&vase=x.y.com")`},
		{Name: "username", Short: "n", Kind: KindString, ValueName: "username", Usage: "the username of " + d.Name},
		{Name: "password", Short: "w", Kind: KindString, ValueName: "password", Usage: "the password of " + d.Name},
		{Name: "guestName", Short: "N", Kind: KindString, ValueName: "username", Usage: "the guest name"},
		{Name: "guestPassword", Short: "W", Kind: KindString, ValueName: "password", Usage: "the guest password"},
		{Name: "sockets", Short: "s", Kind: KindInt, ValueName: "number", Usage: fmt.Sprintf("max sockets (%d by default)", d.Sockets)},
		{Name: NameStorage, Short: "S", Kind: KindString, ValueName: "newStorageDir", Usage: "the new local storage directory"},
		{Name: "copy", Short: "C", Kind: KindString, ValueName: "storageDir", Usage: "copy storageDir to newStorageDir"},
		{Name: "dnsCache", Short: "c", Kind: KindString, ValueName: "time", Usage: fmt.Sprintf("the cache time of DNS (%dms by default)", d.DNSCacheMS)},
		{Name: NameHost, Short: "H", Kind: KindString, ValueName: "host", Usage: d.Name + " listening host(:: or 0.0.0.0 by default)"},
		{Name: NamePort, Short: "p", Kind: KindInt, ValueName: "port", Usage: fmt.Sprintf("%s listening port (%d by default)", d.Name, d.Port)},
		{Name: "uiport", Short: "P", Kind: KindInt, ValueName: "uiport", Usage: fmt.Sprintf("%s ui port (%d by default)", d.Name, d.Port+1)},
		{Name: "middlewares", Short: "m", Kind: KindString, ValueName: "script path or module name", Usage: "express middlewares path (as: xx,yy/zz.js)"},
		{Name: "mode", Short: "M", Kind: KindString, ValueName: "mode", Usage: "the " + d.Name + " mode (as: pureProxy|debug|multiEnv)"},
		{Name: "uipath", Short: "u", Kind: KindString, ValueName: "script path", Usage: "web ui plugin path"},
		{Name: "timeout", Short: "t", Kind: KindInt, ValueName: "ms", Usage: fmt.Sprintf("request timeout (%d ms by default)", d.TimeoutMS)},
		{Name: "extra", Short: "e", Kind: KindString, ValueName: "extraData", Usage: "extra data for plugin"},
		{Name: "secureFilter", Short: "f", Kind: KindString, ValueName: "secureFilter", Usage: "the script path of secure filter"},
		{Name: "reqCacheSize", Short: "R", Kind: KindString, ValueName: "reqCacheSize", Usage: "the cache size of request data (512 by default)"},
		{Name: "frameCacheSize", Short: "F", Kind: KindString, ValueName: "frameCacheSize", Usage: "the cache size of socket frames (512 by default)"},
	}
}

func (s Spec) format(v value) string {
	switch s.Kind {
	case KindInt:
		return strconv.Itoa(v.i)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// Select returns the specs named by names, in schema order.
func Select(specs []Spec, names ...string) []Spec {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	selected := make([]Spec, 0, len(names))
	for _, spec := range specs {
		if want[spec.Name] {
			selected = append(selected, spec)
		}
	}
	return selected
}
