package main

import "github.com/ppiankov/pmguard/internal/cli"

func main() {
	cli.Execute()
}
