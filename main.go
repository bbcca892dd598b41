package main

import "github.com/andresmejia3/facesignal/cmd"

func main() {
	cmd.Execute()
}
