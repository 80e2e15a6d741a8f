package main

import (
	"github.com/foomo/catalogserver/cmd"
)

func main() {
	cmd.Execute()
}
