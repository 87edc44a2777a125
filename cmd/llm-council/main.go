// cmd/llm-council/main.go
package main

import (
	"github.com/Zeetio/llm-council/internal/commands"
)

// main starts the llm-council CLI by delegating to the cobra root command.
func main() {
	commands.Execute()
}
