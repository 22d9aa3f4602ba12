package pipeline

import (
	"errors"

	"node.town/mindy/api"
	"node.town/mindy/mic"
	"node.town/mindy/source"
)

var ErrBusy = errors.New("an operation is already in progress")

// UserMessage maps an error to the single message shown to the user.
func UserMessage(err error) string {
	var se *api.ServiceError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "Please wait for the current operation to finish."
	case errors.Is(err, mic.ErrDeviceUnavailable):
		return "The microphone is not available."
	case errors.Is(err, source.ErrUnsupportedFormat):
		return "That file is not a supported audio format."
	case errors.As(err, &se):
		return "The service reported an error: " + se.Message
	case errors.Is(err, api.ErrNetwork):
		return "Could not reach the speech service."
	default:
		return "Something went wrong while processing the audio."
	}
}
