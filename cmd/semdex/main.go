package main

import "semdex/internal/cli"

func main() {
	cli.Execute()
}
