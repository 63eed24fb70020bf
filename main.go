package main

import (
	"breeze/cmd/breeze"
	"fmt"
	"os"
)

func main() {
	if err := breeze.Command.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
