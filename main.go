package main

import (
	"fmt"
	"os"

	"github.com/zeu5/mdp-planner/benchmarks"
)

// main entry point to the planner commands
func main() {
	rootCommand := benchmarks.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
