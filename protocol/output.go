package protocol

import (
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/datazip-inc/streamcatchup/constants"
	"github.com/datazip-inc/streamcatchup/types"
	"github.com/datazip-inc/streamcatchup/utils"
)

// emit prints a message in the configured output format
func emit(w io.Writer, message types.Message) error {
	b, err := utils.Marshal(message, viper.GetString(constants.OutputFormat))
	if err != nil {
		return fmt.Errorf("failed to render %s message: %s", message.Type, err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
