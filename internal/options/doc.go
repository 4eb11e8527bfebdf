// Package options declares the command-line option table shared by the
// lifecycle commands and turns parsed flags into an immutable Options value.
//
// The table is static: each Spec names a long flag, its one-letter shorthand,
// its value kind and help text. Bind registers the table on a pflag.FlagSet;
// Binding.Options captures only flags the operator actually supplied so that
// rendering code can fall back to configured defaults for the rest. The same
// values are re-encoded with EngineArgs when the proxy engine is launched.
package options
