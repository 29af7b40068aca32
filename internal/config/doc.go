// Package config loads tablesync configuration.
//
// Configuration is resolved in layers: built-in defaults, the global file
// (~/.tablesync/config.yaml or $TABLESYNC_HOME/config.yaml), an optional
// project-local .tablesync/config.yaml shallow-merged on top, then
// TABLESYNC_* environment variables. Command-line flags are applied last by
// the cli package.
package config
