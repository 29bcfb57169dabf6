// Package internal contains the core implementation packages for respogen.
//
// # Package Organization
//
// The internal packages are organized by stage of the assembly pipeline:
//
//   - validation: path and project name sanitization
//   - extract: bounded, zip-slip safe reading of uploaded archives
//   - normalize: merging archive, upload and snippet sources by precedence
//   - scaffolding: template registry and placeholder substitution
//   - assembler: deterministic zip output streamed to a writer
//   - services: the generate pipeline tying the stages together
//   - server: HTTP transport, rate limiting and middleware
//   - watcher: debounced template directory reloads
//
// Supporting packages: project holds the FileSet model, errors the
// classified AssemblyError, logging the slog-backed Logger, config the
// viper configuration and version the build metadata.
//
// Every path reaching a FileSet has passed validation.SanitizePath, and
// all user-controlled sizes are bounded before the bytes are read.
package internal
