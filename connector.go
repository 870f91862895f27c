package streamcatchup

import (
	"os"

	_ "modernc.org/sqlite" // registering the sqlite database/sql driver

	"github.com/datazip-inc/streamcatchup/protocol"
	"github.com/datazip-inc/streamcatchup/utils/logger"
	"github.com/datazip-inc/streamcatchup/utils/safego"
)

// Execute runs the catchup command line and exits the process
func Execute() {
	defer safego.Recovery(true)

	// Execute the root command
	err := protocol.CreateRootCommand().Execute()
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(0)
}
