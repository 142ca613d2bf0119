package main

import "github.com/forPelevin/pinpoint/internal/cli"

func main() {
	cli.Main()
}
