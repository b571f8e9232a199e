package soap

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testServiceType = "urn:schemas-upnp-org:service:TestService:1"

func testRouter(t *testing.T) *Router {
	t.Helper()
	r := NewRouter(testServiceType, zap.NewNop())

	err := r.Register(Action{
		Name: "Add",
		Args: []Arg{
			{Direction: In, Name: "A", Type: "i4"},
			{Direction: In, Name: "B", Type: "i4"},
			{Direction: RetVal, Name: "Sum", Type: "i4"},
		},
		Handler: func(ctx *Context, in []any) ([]any, error) {
			return []any{in[0].(int64) + in[1].(int64)}, nil
		},
	})
	require.NoError(t, err)

	err = r.Register(Action{
		Name: "Echo",
		Args: []Arg{
			{Direction: In, Name: "Text", Type: "string"},
			{Direction: Out, Name: "First", Type: "string"},
			{Direction: Out, Name: "Second", Type: "string"},
		},
		Handler: func(ctx *Context, in []any) ([]any, error) {
			s := in[0].(string)
			return []any{s, s + s}, nil
		},
	})
	require.NoError(t, err)

	err = r.Register(Action{
		Name: "Explode",
		Args: []Arg{},
		Handler: func(ctx *Context, in []any) ([]any, error) {
			return nil, NewError(601, "boom")
		},
	})
	require.NoError(t, err)

	return r
}

func envelope(serviceType, action string, params string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"
            s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
  <s:Body>
    <u:%s xmlns:u=%q>%s</u:%s>
  </s:Body>
</s:Envelope>`, action, serviceType, params, action)
}

func post(t *testing.T, r *Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/TestDevice/TestService/control", strings.NewReader(body))
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDispatchSuccess(t *testing.T) {
	r := testRouter(t)
	w := post(t, r, envelope(testServiceType, "Add", "<A>2</A><B>3</B>"))

	require.Equal(t, 200, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, `<u:AddResponse xmlns:u="`+testServiceType+`">`)
	assert.Contains(t, body, "<Sum>5</Sum>")
	assert.Contains(t, body, `s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"`)
}

func TestDispatchOutParameterOrder(t *testing.T) {
	r := testRouter(t)
	w := post(t, r, envelope(testServiceType, "Echo", "<Text>ab</Text>"))

	require.Equal(t, 200, w.Code, w.Body.String())
	body := w.Body.String()
	first := strings.Index(body, "<First>ab</First>")
	second := strings.Index(body, "<Second>abab</Second>")
	require.True(t, first >= 0 && second >= 0, body)
	assert.Less(t, first, second, "out parameters must keep declared order")
}

func TestDispatchInvalidAction(t *testing.T) {
	r := testRouter(t)
	w := post(t, r, envelope(testServiceType, "Nonexistent", ""))

	require.Equal(t, 500, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<errorCode>401</errorCode>")
	assert.Contains(t, body, "<errorDescription>Invalid Action</errorDescription>")
	assert.Contains(t, body, "<faultcode>s:Client</faultcode>")
	assert.Contains(t, body, "<faultstring>UPnPError</faultstring>")
	assert.Contains(t, body, `<UPnPError xmlns="urn:schemas-upnp-org:control-1-0">`)
}

func TestDispatchWrongNamespaceIsInvalidAction(t *testing.T) {
	r := testRouter(t)
	w := post(t, r, envelope("urn:schemas-upnp-org:service:Other:1", "Add", "<A>1</A><B>1</B>"))

	require.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "<errorCode>401</errorCode>")
}

func TestDispatchInvalidArgs(t *testing.T) {
	r := testRouter(t)

	// Non-numeric argument fails i4 coercion.
	w := post(t, r, envelope(testServiceType, "Add", "<A>two</A><B>3</B>"))
	require.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "<errorCode>402</errorCode>")
	assert.Contains(t, w.Body.String(), "<errorDescription>Invalid Args</errorDescription>")

	// Missing argument is also 402.
	w = post(t, r, envelope(testServiceType, "Add", "<A>2</A>"))
	require.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "<errorCode>402</errorCode>")
}

func TestDispatchHandlerFault(t *testing.T) {
	r := testRouter(t)
	w := post(t, r, envelope(testServiceType, "Explode", ""))

	require.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "<errorCode>601</errorCode>")
	assert.Contains(t, w.Body.String(), "<errorDescription>boom</errorDescription>")
}

func TestDispatchMalformedEnvelope(t *testing.T) {
	r := testRouter(t)
	w := post(t, r, "this is not xml")
	assert.Equal(t, 400, w.Code)
}

func TestDispatchRejectsGet(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest("GET", "/TestDevice/TestService/control", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 400, w.Code)
}

func TestRegisterRejectsLateRetval(t *testing.T) {
	r := NewRouter(testServiceType, zap.NewNop())
	err := r.Register(Action{
		Name: "Bad",
		Args: []Arg{
			{Direction: Out, Name: "X", Type: "string"},
			{Direction: RetVal, Name: "Y", Type: "string"},
		},
		Handler: func(ctx *Context, in []any) ([]any, error) { return []any{"", ""}, nil },
	})
	require.Error(t, err)
}

func TestRegisterRejectsUnknownType(t *testing.T) {
	r := NewRouter(testServiceType, zap.NewNop())
	err := r.Register(Action{
		Name:    "Bad",
		Args:    []Arg{{Direction: In, Name: "X", Type: "quaternion"}},
		Handler: func(ctx *Context, in []any) ([]any, error) { return nil, nil },
	})
	require.Error(t, err)
}

func TestSOAPActionHeaderString(t *testing.T) {
	got := SOAPAction(testServiceType, "Add")
	assert.Equal(t, testServiceType+"#Add", got)
}

func TestClientCallRoundTrip(t *testing.T) {
	r := testRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(zap.NewNop())
	out, err := c.Call(context.Background(), srv.URL, testServiceType, "Add",
		[]Param{{Name: "A", Value: "20"}, {Name: "B", Value: "22"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Sum", out[0].Name)
	assert.Equal(t, "42", out[0].Value)
}

func TestClientCallFault(t *testing.T) {
	r := testRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := NewClient(zap.NewNop())
	_, err := c.Call(context.Background(), srv.URL, testServiceType, "Explode", nil)
	require.Error(t, err)

	var upnpErr *Error
	require.ErrorAs(t, err, &upnpErr)
	assert.Equal(t, 601, upnpErr.Code)
	assert.Equal(t, "boom", upnpErr.Description)
}
