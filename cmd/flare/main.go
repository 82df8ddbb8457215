package main

import "github.com/flaredantic/flaredantic-go/cmd"

func main() {
	cmd.Execute()
}
