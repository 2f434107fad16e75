package main

import "taskhub/cmd/cli/command"

func main() {
	command.Execute()
}
