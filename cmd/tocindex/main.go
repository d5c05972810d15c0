package main

import "github.com/dgallion1/tocindex/internal/cli"

func main() {
	cli.Execute()
}
