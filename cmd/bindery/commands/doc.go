// Package commands defines the bindery CLI.
//
// Commands
//
//   - match   Show which route table entry each address selects
//   - render  Render one view against a YAML state file
//   - vet     Check views and the controllers that own them
//   - serve   Prerender the route table over HTTP with live sessions
//
// # Implementation
//
// The root command loads the TOML configuration and builds the logger
// before any subcommand runs, so every subcommand sees the same Config.
package commands
