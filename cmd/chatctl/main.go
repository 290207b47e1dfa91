package main

import "github.com/noah-isme/trailmate-chat/internal/cli"

func main() {
	cli.Execute()
}
