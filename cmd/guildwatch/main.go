package main

import "github.com/vietddude/guildwatch/internal/cli"

func main() {
	cli.Execute()
}
