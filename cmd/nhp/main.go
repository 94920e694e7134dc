package main

import "nhp/internal/cli"

func main() {
	cli.Execute()
}
