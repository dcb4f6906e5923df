package main

import "blueprint/internal/cli"

func main() {
	cli.Execute()
}
