package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/pathways/internal/workflow"
)

// marker maps a lower-cased substring of an upstream error message to a
// sentinel. Used only when the response carries no kind.
type marker struct {
	text string
	err  error
}

// contract lists the failure kinds a call may report and the text markers
// recognised when the response carries no kind. Any other kind is an
// upstream failure.
type contract struct {
	kinds   map[workflow.Kind]error
	markers []marker
}

var (
	transcribeContract = contract{
		kinds: map[workflow.Kind]error{workflow.KindBadAudio: workflow.ErrBadAudio},
		markers: []marker{
			{"unusable", workflow.ErrBadAudio},
			{"not usable", workflow.ErrBadAudio},
		},
	}
	lookupContract = contract{
		kinds:   map[workflow.Kind]error{workflow.KindBadLocationKey: workflow.ErrBadLocationKey},
		markers: []marker{{"invalid", workflow.ErrBadLocationKey}},
	}
	generateContract = contract{}
)

func decodeError(status int, data []byte, c contract) error {
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
		if body.Error == "" {
			body.Error = http.StatusText(status)
		}
	}

	if body.Kind != "" {
		if sentinel, ok := c.kinds[body.Kind]; ok {
			return fmt.Errorf("%w: %s", sentinel, body.Error)
		}
		return fmt.Errorf("%w: %d: %s: %s", ErrUpstream, status, body.Kind, body.Error)
	}

	msg := strings.ToLower(body.Error)
	for _, m := range c.markers {
		if strings.Contains(msg, m.text) {
			return fmt.Errorf("%w: %s", m.err, body.Error)
		}
	}

	return fmt.Errorf("%w: %d: %s", ErrUpstream, status, body.Error)
}
