package options

import (
	"fmt"
	"net/url"
	"strings"
)

type value struct {
	s string
	i int
	b bool
}

// Options is the immutable set of options the operator supplied. Options that
// were not given on the command line are absent, so callers fall back to
// configured defaults.
type Options struct {
	specs  []Spec
	values map[string]value
}

// Empty returns options with no values set for the given schema.
func Empty(specs []Spec) Options {
	return Options{specs: specs}
}

// FromMap builds options from plain values, typed according to specs.
// Unknown names and mismatched types are rejected.
func FromMap(specs []Spec, values map[string]any) (Options, error) {
	opts := Empty(specs)
	for name, raw := range values {
		next, err := opts.With(name, raw)
		if err != nil {
			return Options{}, err
		}
		opts = next
	}
	return opts, nil
}

// With returns a copy of o with name set to raw.
func (o Options) With(name string, raw any) (Options, error) {
	spec, ok := o.spec(name)
	if !ok {
		return Options{}, fmt.Errorf("unknown option %q", name)
	}
	var v value
	switch spec.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Options{}, fmt.Errorf("option %q expects a string, got %T", name, raw)
		}
		v.s = s
	case KindInt:
		i, ok := raw.(int)
		if !ok {
			return Options{}, fmt.Errorf("option %q expects an int, got %T", name, raw)
		}
		v.i = i
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Options{}, fmt.Errorf("option %q expects a bool, got %T", name, raw)
		}
		v.b = b
	}
	values := make(map[string]value, len(o.values)+1)
	for k, existing := range o.values {
		values[k] = existing
	}
	values[name] = v
	return Options{specs: o.specs, values: values}, nil
}

func (o Options) spec(name string) (Spec, bool) {
	for _, s := range o.specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

func (o Options) lookup(name string, kind Kind) (value, bool) {
	spec, ok := o.spec(name)
	if !ok || spec.Kind != kind {
		return value{}, false
	}
	v, ok := o.values[name]
	return v, ok
}

// IsSet reports whether the operator supplied name.
func (o Options) IsSet(name string) bool {
	_, ok := o.values[name]
	return ok
}

// String returns a string option.
func (o Options) String(name string) (string, bool) {
	v, ok := o.lookup(name, KindString)
	return v.s, ok
}

// Int returns an integer option.
func (o Options) Int(name string) (int, bool) {
	v, ok := o.lookup(name, KindInt)
	return v.i, ok
}

// Bool returns a boolean option.
func (o Options) Bool(name string) (bool, bool) {
	v, ok := o.lookup(name, KindBool)
	return v.b, ok
}

// Port returns the explicit proxy port.
func (o Options) Port() (int, bool) { return o.Int(NamePort) }

// LocalUIHost returns the explicit local UI host.
func (o Options) LocalUIHost() (string, bool) { return o.String(NameLocalUIHost) }

// Storage returns the explicit storage directory name.
func (o Options) Storage() (string, bool) { return o.String(NameStorage) }

// Host returns the explicit listening host.
func (o Options) Host() (string, bool) { return o.String(NameHost) }

// EngineArgs re-encodes the supplied options as long flags in schema order.
// False booleans are omitted.
func (o Options) EngineArgs() []string {
	var args []string
	for _, spec := range o.specs {
		v, ok := o.values[spec.Name]
		if !ok {
			continue
		}
		if spec.Kind == KindBool {
			if v.b {
				args = append(args, "--"+spec.Name)
			}
			continue
		}
		args = append(args, "--"+spec.Name, spec.format(v))
	}
	return args
}

// Map returns the supplied options as plain values keyed by name.
func (o Options) Map() map[string]any {
	out := make(map[string]any, len(o.values))
	for _, spec := range o.specs {
		v, ok := o.values[spec.Name]
		if !ok {
			continue
		}
		switch spec.Kind {
		case KindInt:
			out[spec.Name] = v.i
		case KindBool:
			out[spec.Name] = v.b
		default:
			out[spec.Name] = v.s
		}
	}
	return out
}

// Target returns the identity of the engine instance these options describe:
// the engine command, plus the escaped storage name as a #fragment# when a
// storage directory is set. Instances with different storage run side by side.
func Target(engineCommand string, o Options) string {
	target := strings.TrimSpace(engineCommand)
	if storage, ok := o.Storage(); ok && storage != "" {
		target += "#" + url.PathEscape(storage) + "#"
	}
	return target
}
