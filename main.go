package main

import "github.com/brogergvhs/mangamirror/cmd"

func main() {
	cmd.Execute()
}
