package main

import "Soundcheck/cmd"

func main() {
	cmd.Execute()
}
