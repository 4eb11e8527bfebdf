package options

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Binding connects a schema to a flag set and collects what was parsed.
type Binding struct {
	flags   *pflag.FlagSet
	specs   []Spec
	strings map[string]*namedString
	ints    map[string]*namedInt
	bools   map[string]*bool
}

// Bind registers every spec on flags.
func Bind(flags *pflag.FlagSet, specs []Spec) *Binding {
	b := &Binding{
		flags:   flags,
		specs:   specs,
		strings: make(map[string]*namedString),
		ints:    make(map[string]*namedInt),
		bools:   make(map[string]*bool),
	}
	for _, spec := range specs {
		switch spec.Kind {
		case KindBool:
			b.bools[spec.Name] = flags.BoolP(spec.Name, spec.Short, false, spec.Usage)
		case KindInt:
			v := &namedInt{name: valueName(spec, "number")}
			b.ints[spec.Name] = v
			flags.VarP(v, spec.Name, spec.Short, spec.Usage)
		default:
			v := &namedString{name: valueName(spec, "string")}
			b.strings[spec.Name] = v
			flags.VarP(v, spec.Name, spec.Short, spec.Usage)
		}
	}
	return b
}

// Options returns the options the operator set. Flags left at their zero
// default are absent from the result.
func (b *Binding) Options() Options {
	opts := Options{specs: b.specs, values: make(map[string]value)}
	for _, spec := range b.specs {
		if !b.flags.Changed(spec.Name) {
			continue
		}
		switch spec.Kind {
		case KindBool:
			opts.values[spec.Name] = value{b: *b.bools[spec.Name]}
		case KindInt:
			opts.values[spec.Name] = value{i: b.ints[spec.Name].value}
		default:
			opts.values[spec.Name] = value{s: b.strings[spec.Name].value}
		}
	}
	return opts
}

func valueName(spec Spec, fallback string) string {
	if strings.TrimSpace(spec.ValueName) == "" {
		return fallback
	}
	return spec.ValueName
}

// namedString is a string flag whose help placeholder is the schema's value name.
type namedString struct {
	name  string
	value string
}

func (v *namedString) String() string { return v.value }

func (v *namedString) Set(s string) error {
	v.value = s
	return nil
}

func (v *namedString) Type() string { return v.name }

// namedInt parses like a lenient integer reader: leading digits are accepted
// and trailing garbage is ignored ("8899abc" is 8899).
type namedInt struct {
	name  string
	value int
}

func (v *namedInt) String() string { return strconv.Itoa(v.value) }

func (v *namedInt) Set(s string) error {
	n, err := parseLeadingInt(s)
	if err != nil {
		return err
	}
	v.value = n
	return nil
}

func (v *namedInt) Type() string { return v.name }

func parseLeadingInt(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	end := 0
	if end < len(trimmed) && (trimmed[end] == '-' || trimmed[end] == '+') {
		end++
	}
	digits := end
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return strconv.Atoi(trimmed[:end])
}
