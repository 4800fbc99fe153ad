package main

import "github.com/Tiliavir/schedsync/cmd"

func main() {
	cmd.Execute()
}
