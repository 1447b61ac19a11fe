// Package app wires the compiler together. It owns the configuration, the
// optional project file, the logger and the compile pipeline that turns DSL
// source files into validated model descriptions, decoupled from any
// specific entrypoint like the CLI.
package app
