package main

import "github.com/m1ggy/time-doctor-monday.com-integration/cmd"

func main() {
	cmd.Execute()
}
