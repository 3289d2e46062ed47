package main

import "github.com/Sadick14/ticket-flow/cmd"

func main() {
	cmd.Execute()
}
