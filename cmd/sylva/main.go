package main

import "github.com/jdelmas/sylva/cmd/sylva/cmd"

func main() {
	cmd.Execute()
}
