package main

import (
	"os"

	"go.uber.org/zap"

	llmsynthdata "github.com/temirov/llm-synthdata/cmd/llm-synthdata"
)

func main() {
	logger := zap.Must(zap.NewProduction())

	executionErr := llmsynthdata.Execute()
	if executionErr != nil {
		logger.Error("command execution failed", zap.Error(executionErr))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}
