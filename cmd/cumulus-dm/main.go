package main

import "github.com/foolean/cumulus-dm/cmd/cumulus-dm/cmd"

func main() {
	cmd.Execute()
}
