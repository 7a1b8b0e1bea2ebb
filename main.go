package main

import "ibex-sync/internal/cli"

func main() {
	cli.Execute()
}
