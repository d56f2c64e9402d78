package main

import "github.com/livp123/pktstream/cmd/pktstream/commands"

func main() {
	commands.Execute()
}
