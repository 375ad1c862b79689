package main

import "github.com/naka-gawa/tap-mssql/cmd"

func main() {
	cmd.Execute()
}
