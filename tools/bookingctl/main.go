package main

import "github.com/md-rashed-zaman/bookwell/tools/bookingctl/cmd"

func main() {
	cmd.Execute()
}
