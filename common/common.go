// Package common holds constants shared across the timebank binaries.
package common

// PackageName identifies this service in metrics and logs.
const PackageName = "timebank"

// Version is set at build time via -ldflags.
var Version = "dev"
