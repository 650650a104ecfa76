package main

import "github.com/vietddude/opswatch/internal/cli"

func main() {
	cli.Execute()
}
