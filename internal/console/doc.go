// Package console models operator-facing output as severity-tagged lines with
// optional emphasis spans, and renders them to a stream.
package console
