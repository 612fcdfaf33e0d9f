// Package main provides the forgegate CLI for managing organizations, teams
// and permissions against a forgegate server.
package main

import "github.com/mscno/forgegate/cmd/forgegate/commands"

func main() {
	commands.Execute(Version)
}
