package main

import "github.com/Muhametii00/calendar/cmd/calendar/cmd"

func main() {
	cmd.Execute()
}
