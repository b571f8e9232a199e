package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Standard UPnP error codes. 600-699 are action-specific.
const (
	CodeInvalidAction = 401
	CodeInvalidArgs   = 402
	CodeActionFailed  = 501
)

// Error is an action-level failure that crosses the SOAP boundary as a
// UPnPError fault, preserving code and description bit-exactly.
type Error struct {
	Code        int
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upnp error %d: %s", e.Code, e.Description)
}

// NewError builds an action-specific error.
func NewError(code int, description string) *Error {
	return &Error{Code: code, Description: description}
}

// ErrInvalidAction reports a request for an action the service does
// not register.
func ErrInvalidAction() *Error { return &Error{Code: CodeInvalidAction, Description: "Invalid Action"} }

// ErrInvalidArgs reports arguments that failed type coercion.
func ErrInvalidArgs() *Error { return &Error{Code: CodeInvalidArgs, Description: "Invalid Args"} }

// ErrActionFailed reports a handler failure without its own code.
func ErrActionFailed() *Error { return &Error{Code: CodeActionFailed, Description: "Action Failed"} }

// writeFault renders the UPnP fault envelope:
//
//	<s:Fault>
//	  <faultcode>s:Client</faultcode>
//	  <faultstring>UPnPError</faultstring>
//	  <detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">
//	    <errorCode>N</errorCode>
//	    <errorDescription>...</errorDescription>
//	  </UPnPError></detail>
//	</s:Fault>
func writeFault(w io.Writer, e *Error) error {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<s:Envelope xmlns:s=%q s:encodingStyle=%q>`, EnvelopeNamespace, EncodingStyle)
	b.WriteString("<s:Body><s:Fault>")
	b.WriteString("<faultcode>s:Client</faultcode>")
	b.WriteString("<faultstring>UPnPError</faultstring>")
	fmt.Fprintf(&b, `<detail><UPnPError xmlns=%q>`, ControlNamespace)
	fmt.Fprintf(&b, "<errorCode>%d</errorCode>", e.Code)
	b.WriteString("<errorDescription>")
	if err := xml.EscapeText(&b, []byte(e.Description)); err != nil {
		return err
	}
	b.WriteString("</errorDescription>")
	b.WriteString("</UPnPError></detail>")
	b.WriteString("</s:Fault></s:Body></s:Envelope>")

	_, err := w.Write(b.Bytes())
	return err
}

// faultDetail mirrors the fault body for client-side decoding.
type faultDetail struct {
	XMLName xml.Name `xml:"Fault"`
	Detail  struct {
		UPnPError struct {
			Code        int    `xml:"errorCode"`
			Description string `xml:"errorDescription"`
		} `xml:"UPnPError"`
	} `xml:"detail"`
}

// parseFault decodes a fault body child into an *Error.
func parseFault(data []byte) (*Error, error) {
	var f faultDetail
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: fault: %v", ErrMalformed, err)
	}
	return &Error{
		Code:        f.Detail.UPnPError.Code,
		Description: f.Detail.UPnPError.Description,
	}, nil
}
