/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/samwightt/gqlblind/cmd"

func main() {
	cmd.Execute()
}
