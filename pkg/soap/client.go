package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client issues SOAP action calls against remote control URLs.
type Client struct {
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a SOAP client with a 30s request timeout.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Call invokes an action on a remote service and returns the
// out-parameters in response order. A fault response is returned as a
// *Error carrying the remote code and description.
func (c *Client) Call(ctx context.Context, endpoint, serviceType, action string, in []Param) ([]Param, error) {
	var body bytes.Buffer
	if err := writeEnvelope(&body, serviceType, action, in); err != nil {
		return nil, fmt.Errorf("soap: compose %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("soap: request %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf("%q", SOAPAction(serviceType, action)))

	c.logger.Debug("soap call",
		zap.String("endpoint", endpoint),
		zap.String("action", action),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("soap: call %s: %w", action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("soap: read response: %w", err)
	}

	return decodeReply(data, action)
}

// decodeReply parses a response envelope: either the
// <ActionResponse> element with out-params, or a fault.
func decodeReply(data []byte, action string) ([]Param, error) {
	var env rawEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var elem rawElement
	if err := xml.NewDecoder(bytes.NewReader(env.Body.Inner)).Decode(&elem); err != nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	if elem.XMLName.Local == "Fault" {
		upnpErr, err := parseFault(env.Body.Inner)
		if err != nil {
			return nil, err
		}
		return nil, upnpErr
	}

	if elem.XMLName.Local != action+"Response" {
		return nil, fmt.Errorf("%w: unexpected body child %s", ErrMalformed, elem.XMLName.Local)
	}

	out := make([]Param, 0, len(elem.Children))
	for _, child := range elem.Children {
		out = append(out, Param{Name: child.XMLName.Local, Value: child.Value})
	}
	return out, nil
}
