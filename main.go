package main

import "github.com/andysalerno/mcts/cmd"

func main() {
	cmd.Execute()
}
