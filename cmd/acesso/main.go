package main

import "github.com/Thalikbussacro/acesso-clientes/cmd/acesso/cmd"

func main() {
	cmd.Execute()
}
