package main

import "github.com/frahmantamala/audit-management/cmd"

func main() {
	cmd.Execute()
}
