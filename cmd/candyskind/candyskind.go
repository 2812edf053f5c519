package main

import (
	"fmt"
	"os"

	. "candy.skin/yggdrasil/internal/cmd"
)

func main() {
	err := RootCmd.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
