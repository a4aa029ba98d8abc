package main

import "animport/cmd"

func main() {
	cmd.Execute()
}
