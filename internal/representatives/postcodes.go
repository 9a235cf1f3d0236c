package representatives

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/JaimeStill/pathways/internal/workflow"
)

// DefaultPostcodesURL is the public postcodes.io endpoint.
const DefaultPostcodesURL = "https://api.postcodes.io"

var postcodePattern = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]?[0-9][A-Z]{2}$`)

// NormalizePostcode upper-cases key and removes all whitespace.
func NormalizePostcode(key string) string {
	return strings.Join(strings.Fields(strings.ToUpper(key)), "")
}

// ValidPostcode reports whether a normalized postcode has the UK outward and
// inward code shape.
func ValidPostcode(postcode string) bool {
	return postcodePattern.MatchString(postcode)
}

// Postcodes resolves postcodes to parliamentary constituencies.
type Postcodes struct {
	base   string
	client *http.Client
}

// NewPostcodes returns a client for the postcodes.io API at base.
func NewPostcodes(base string, timeout time.Duration) *Postcodes {
	if base == "" {
		base = DefaultPostcodesURL
	}
	return &Postcodes{
		base:   strings.TrimSuffix(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type postcodeResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Result *struct {
		ParliamentaryConstituency string `json:"parliamentary_constituency"`
	} `json:"result"`
}

// Constituency returns the constituency for a normalized postcode.
// Postcodes the service rejects or does not know wrap workflow.ErrBadLocationKey.
func (p *Postcodes) Constituency(ctx context.Context, postcode string) (string, error) {
	endpoint := p.base + "/postcodes/" + url.PathEscape(postcode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build postcode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("postcode lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read postcode response: %w", err)
	}

	var parsed postcodeResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil && resp.StatusCode == http.StatusOK {
			return "", fmt.Errorf("decode postcode response: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: %s", workflow.ErrBadLocationKey, upstreamMessage(parsed.Error, resp.Status))
	default:
		return "", fmt.Errorf("postcode lookup: %s", upstreamMessage(parsed.Error, resp.Status))
	}

	if parsed.Result == nil || strings.TrimSpace(parsed.Result.ParliamentaryConstituency) == "" {
		return "", fmt.Errorf("%w: %w", workflow.ErrBadLocationKey, ErrNoConstituency)
	}
	return strings.TrimSpace(parsed.Result.ParliamentaryConstituency), nil
}

// ErrNoConstituency is returned when a postcode resolves without a constituency.
var ErrNoConstituency = errors.New("could not determine constituency for postcode")

func upstreamMessage(msg, status string) string {
	if msg != "" {
		return msg
	}
	return status
}
