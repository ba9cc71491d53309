package main

import "github.com/overstreetbilly/snapgram/cmd/snapgramctl/commands"

func main() {
	commands.Execute()
}
