package cli

import (
	"os"

	"peek/internal/config"
	"peek/internal/db"
	"peek/internal/llm"
)

// Function variables for dependency injection in tests.
// Default values are the real implementations; tests may temporarily swap them.
var (
	osMkdirAll         = os.MkdirAll
	configLoad         = config.Load
	configWriteDefault = config.WriteDefault
	checkDatabaseURL   = db.CheckURL
	newProvider        = llm.NewProvider
	connectDatabase    = db.Connect
)
