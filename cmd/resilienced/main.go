package main

import "github.com/stylevault/resilience/internal/cli"

func main() {
	cli.Execute()
}
