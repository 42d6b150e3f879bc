package main

import "github.com/endorses/prowl/cmd"

func main() {
	cmd.Execute()
}
