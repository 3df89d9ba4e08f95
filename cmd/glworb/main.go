// Package main provides the glworb CLI.
package main

import "github.com/mesh-intelligence/glworbs/internal/cli"

func main() {
	cli.Execute()
}
