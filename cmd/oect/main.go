package main

import "github.com/RMahshie/oect/cmd/oect/cmd"

func main() {
	cmd.Execute()
}
