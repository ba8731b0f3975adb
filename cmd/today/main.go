package main

import "github.com/theakshaypant/today/cmd/today/cmd"

func main() {
	cmd.Execute()
}
