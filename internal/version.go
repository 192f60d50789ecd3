// Package internal holds build metadata shared by the commands.
package internal

// Version is the build version, set at build time with -ldflags
var Version = "dev"
