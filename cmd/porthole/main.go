package main

import "github.com/porthole/porthole/cmd/porthole/commands"

func main() {
	commands.Execute()
}
