// Package main provides the entry point for the edgeprov CLI.
package main

import "os"

func main() {
	os.Exit(ExitCode(Execute()))
}
