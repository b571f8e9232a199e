// Package soap implements the SOAP 1.1 profile UPnP uses for action
// control: the server-side dispatcher that routes envelopes to action
// handlers, the client side that composes calls, and the UPnPError
// fault format that crosses the wire bit-exactly.
package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Envelope and encoding namespaces.
const (
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	EncodingStyle     = "http://schemas.xmlsoap.org/soap/encoding/"
	ControlNamespace  = "urn:schemas-upnp-org:control-1-0"
)

// ErrMalformed reports an envelope the dispatcher could not parse.
var ErrMalformed = errors.New("soap: malformed envelope")

// Param is one named argument value in wire form.
type Param struct {
	Name  string
	Value string
}

// call is a parsed inbound request: the qualified body child and its
// parameters in document order.
type call struct {
	Space  string
	Action string
	Params []Param
}

type rawEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

type rawElement struct {
	XMLName  xml.Name
	Children []rawChild `xml:",any"`
}

type rawChild struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// parseCall extracts the first body child of a SOAP 1.1 envelope. The
// encoded/literal mismatch typical of UPnP is handled by reading every
// argument as an untyped string; coercion happens later.
func parseCall(r io.Reader) (*call, error) {
	var env rawEnvelope
	if err := xml.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.XMLName.Space != EnvelopeNamespace {
		return nil, fmt.Errorf("%w: envelope namespace %q", ErrMalformed, env.XMLName.Space)
	}

	var elem rawElement
	dec := xml.NewDecoder(bytes.NewReader(env.Body.Inner))
	if err := dec.Decode(&elem); err != nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	c := &call{
		Space:  elem.XMLName.Space,
		Action: elem.XMLName.Local,
		Params: make([]Param, 0, len(elem.Children)),
	}
	for _, child := range elem.Children {
		c.Params = append(c.Params, Param{Name: child.XMLName.Local, Value: child.Value})
	}
	return c, nil
}

// writeEnvelope renders a request or response envelope whose body
// child is <u:name xmlns:u="serviceType"> wrapping the params in
// order. Explicit per-argument types are suppressed.
func writeEnvelope(w io.Writer, serviceType, name string, params []Param) error {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<s:Envelope xmlns:s=%q s:encodingStyle=%q>`, EnvelopeNamespace, EncodingStyle)
	b.WriteString("<s:Body>")
	fmt.Fprintf(&b, `<u:%s xmlns:u=%q>`, name, serviceType)
	for _, p := range params {
		fmt.Fprintf(&b, "<%s>", p.Name)
		if err := xml.EscapeText(&b, []byte(p.Value)); err != nil {
			return fmt.Errorf("soap: escape %s: %w", p.Name, err)
		}
		fmt.Fprintf(&b, "</%s>", p.Name)
	}
	fmt.Fprintf(&b, "</u:%s>", name)
	b.WriteString("</s:Body></s:Envelope>")

	_, err := w.Write(b.Bytes())
	return err
}
