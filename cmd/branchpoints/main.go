// Package main is the entry point for the branchpoints CLI.
package main

import "github.com/dshills/branchpoints/internal/cli"

func main() {
	cli.Execute()
}
