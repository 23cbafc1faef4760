package main

import "github.com/nfrund/evmarket/cmd/evmarket-cli/cmd"

func main() {
	cmd.Execute()
}
