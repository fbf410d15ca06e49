package utils

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

func ConvertPanicValueToError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}

	return fmt.Errorf("%#v", v)
}

// Recover recovers from a panic and logs it with the stack trace, it should be called with defer.
func Recover(logger zerolog.Logger) {
	if e := recover(); e != nil {
		err := ConvertPanicValueToError(e)
		logger.Error().Err(err).Str("stack", string(debug.Stack())).Msg("recovered from panic")
	}
}

// CombineErrors combines errors into a single error with a multiline message.
func CombineErrors(errs ...error) error {

	if len(errs) == 0 {
		return nil
	}

	finalErrBuff := bytes.NewBuffer(nil)

	for _, err := range errs {
		if err != nil {
			finalErrBuff.WriteString(err.Error())
			finalErrBuff.WriteRune('\n')
		}
	}

	if finalErrBuff.Len() == 0 {
		return nil
	}

	return errors.New(strings.TrimRight(finalErrBuff.String(), "\n"))
}
