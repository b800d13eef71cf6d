// Package model defines the value types shared by every xtask command.
//
// This package holds the target selector, the deployment environment and
// execution context enumerations, and the exit codes and error types that
// the command layer translates into process exit statuses.
//
// Nothing here is persisted. All values are reconstructed from command-line
// flags and environment files on every invocation.
package model
