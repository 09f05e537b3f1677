package main

import "github.com/Togather-Foundation/eventease/cmd/server/cmd"

func main() {
	cmd.Execute()
}
