package soap

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/pkg/types"
)

// Direction of one action argument.
type Direction string

const (
	In     Direction = "in"
	Out    Direction = "out"
	RetVal Direction = "retval"
)

// Arg declares one action parameter: its direction, its name on the
// wire, and the data-type token supplied by its related state variable.
type Arg struct {
	Direction Direction
	Name      string
	Type      string

	codec *types.Codec
}

// Handler is the code behind one action. It receives the coerced
// in-arguments positionally and returns the out-values in declared
// order, retval first when present, or an error — a *Error carries an
// explicit UPnP code, anything else becomes 501 Action Failed.
type Handler func(ctx *Context, in []any) ([]any, error)

// Context carries per-request state into a handler.
type Context struct {
	Request *http.Request
}

// Action registers one operation with the router.
type Action struct {
	Name    string
	Args    []Arg
	Handler Handler
}

// SOAPAction returns the SOAPACTION header value for this action on
// the given service type URN.
func SOAPAction(serviceType, action string) string {
	return serviceType + "#" + action
}

// Router dispatches inbound control POSTs for one service. Build one
// per service at construction time; lookups are plain table lookups,
// no reflection.
type Router struct {
	serviceType string
	actions     map[string]*Action
	order       []string
	logger      *zap.Logger
}

// NewRouter creates an empty router for a service type URN.
func NewRouter(serviceType string, logger *zap.Logger) *Router {
	return &Router{
		serviceType: serviceType,
		actions:     make(map[string]*Action),
		logger:      logger,
	}
}

// Register adds an action, resolving each argument's codec through the
// type registry. At most one retval is allowed and it must be the
// first out-parameter.
func (r *Router) Register(a Action) error {
	if a.Name == "" {
		return errors.New("soap: action name required")
	}
	if a.Handler == nil {
		return fmt.Errorf("soap: action %s: handler required", a.Name)
	}
	if _, dup := r.actions[a.Name]; dup {
		return fmt.Errorf("soap: action %s already registered", a.Name)
	}

	seenOut := false
	for i := range a.Args {
		arg := &a.Args[i]
		switch arg.Direction {
		case In:
		case Out:
			seenOut = true
		case RetVal:
			if seenOut {
				return fmt.Errorf("soap: action %s: retval must be the first out argument", a.Name)
			}
			seenOut = true
		default:
			return fmt.Errorf("soap: action %s: bad direction %q", a.Name, arg.Direction)
		}

		codec, err := types.Lookup(arg.Type)
		if err != nil {
			return fmt.Errorf("soap: action %s argument %s: %w", a.Name, arg.Name, err)
		}
		arg.codec = codec
	}

	r.actions[a.Name] = &a
	r.order = append(r.order, a.Name)
	return nil
}

// Actions returns the registered action names in registration order.
func (r *Router) Actions() []string {
	return append([]string(nil), r.order...)
}

// ServiceType returns the service type URN the router serves.
func (r *Router) ServiceType() string {
	return r.serviceType
}

// ServeHTTP handles one control request per the UPnP control rules:
// malformed input is HTTP 400, unknown actions fault 401, bad
// arguments fault 402, handler errors cross as UPnP faults.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "control endpoint accepts POST only", http.StatusBadRequest)
		return
	}

	c, err := parseCall(req.Body)
	if err != nil {
		r.logger.Debug("soap envelope rejected", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	action, ok := r.actions[c.Action]
	if !ok || c.Space != r.serviceType {
		r.logger.Debug("soap unknown action",
			zap.String("action", c.Action),
			zap.String("namespace", c.Space),
		)
		r.fault(w, ErrInvalidAction())
		return
	}

	in, err := r.coerceIn(action, c.Params)
	if err != nil {
		r.logger.Debug("soap argument coercion failed",
			zap.String("action", action.Name),
			zap.Error(err),
		)
		r.fault(w, ErrInvalidArgs())
		return
	}

	out, err := action.Handler(&Context{Request: req}, in)
	if err != nil {
		var upnpErr *Error
		if !errors.As(err, &upnpErr) {
			upnpErr = ErrActionFailed()
		}
		r.logger.Debug("soap action failed",
			zap.String("action", action.Name),
			zap.Int("code", upnpErr.Code),
		)
		r.fault(w, upnpErr)
		return
	}

	params, err := r.encodeOut(action, out)
	if err != nil {
		r.logger.Warn("soap response encoding failed",
			zap.String("action", action.Name),
			zap.Error(err),
		)
		r.fault(w, ErrActionFailed())
		return
	}

	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	if err := writeEnvelope(w, r.serviceType, action.Name+"Response", params); err != nil {
		r.logger.Warn("soap response write failed", zap.Error(err))
	}
}

// coerceIn extracts the declared in-parameters, in declaration order,
// from the wire parameters. Every argument arrives as an untyped
// string and is coerced through the registry.
func (r *Router) coerceIn(action *Action, params []Param) ([]any, error) {
	byName := make(map[string]string, len(params))
	for _, p := range params {
		if _, dup := byName[p.Name]; !dup {
			byName[p.Name] = p.Value
		}
	}

	var in []any
	for _, arg := range action.Args {
		if arg.Direction != In {
			continue
		}
		raw, ok := byName[arg.Name]
		if !ok {
			return nil, fmt.Errorf("missing argument %s", arg.Name)
		}
		v, err := arg.codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", arg.Name, err)
		}
		in = append(in, v)
	}
	return in, nil
}

// encodeOut pairs the handler's return values with the declared
// out-parameters, in declared order (retval first by declaration).
func (r *Router) encodeOut(action *Action, out []any) ([]Param, error) {
	var outArgs []*Arg
	for i := range action.Args {
		if d := action.Args[i].Direction; d == Out || d == RetVal {
			outArgs = append(outArgs, &action.Args[i])
		}
	}
	if len(out) != len(outArgs) {
		return nil, fmt.Errorf("handler returned %d values, action declares %d", len(out), len(outArgs))
	}

	params := make([]Param, 0, len(outArgs))
	for i, arg := range outArgs {
		s, err := arg.codec.Encode(out[i])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", arg.Name, err)
		}
		params = append(params, Param{Name: arg.Name, Value: s})
	}
	return params, nil
}

func (r *Router) fault(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusInternalServerError)
	if err := writeFault(w, e); err != nil {
		r.logger.Warn("soap fault write failed", zap.Error(err))
	}
}
