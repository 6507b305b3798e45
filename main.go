package main

import "github.com/admetric/stacksync/cmd"

func main() {
	cmd.Execute()
}
