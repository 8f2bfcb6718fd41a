package notifier

import (
	"errors"
	"fmt"
)

var errNoSender = errors.New("no chat sender configured")

type panicError struct{ v any }

func (e panicError) Error() string { return fmt.Sprintf("sender panicked: %v", e.v) }
