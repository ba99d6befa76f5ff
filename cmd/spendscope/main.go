package main

import "github.com/DrSkyle/spendscope/cmd/spendscope/commands"

func main() {
	commands.Execute()
}
