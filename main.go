package main

import "github.com/frahmantamala/event-permission/cmd"

func main() {
	cmd.Execute()
}
