package main

import "github.com/invenlore/jwks.resolver/cmd"

func main() {
	cmd.Start()
}
