package main

import "github.com/keygate/cmd/keygate/cmd"

func main() {
	cmd.Execute()
}
