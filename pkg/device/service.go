package device

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/pkg/description"
	"github.com/seattlerb/upnp/pkg/soap"
)

// Service is one service hosted by a device. Its Actions and state
// Variables form the catalog the SCPD document and the SOAP router are
// both generated from, so the two can never disagree.
type Service struct {
	Type string
	ID   string

	device *Device

	actions   []*Action
	variables []*StateVariable
}

// Action is a named operation with its ordered parameter list and the
// handler invoked when a control point calls it.
type Action struct {
	Name    string
	Args    []Argument
	Handler soap.Handler
}

// Argument declares one action parameter. The data type comes from the
// related state variable.
type Argument struct {
	Direction            soap.Direction
	Name                 string
	RelatedStateVariable string
}

// StateVariable is one entry in the service state table.
type StateVariable struct {
	Name          string
	DataType      string
	Default       string
	AllowedValues []string
	AllowedRange  *AllowedRange
	Evented       bool
}

// AllowedRange bounds a numeric state variable.
type AllowedRange struct {
	Min  float64
	Max  float64
	Step float64 // 0 means unstepped
}

// ServiceID builds a service id URN from a domain and an id, replacing
// the domain's dots with dashes.
func ServiceID(domain, id string) string {
	return "urn:" + strings.ReplaceAll(domain, ".", "-") + ":serviceId:" + id
}

// TypeURN returns the schema URN for the service type.
func (s *Service) TypeURN() string {
	return "urn:schemas-upnp-org:service:" + s.Type + ":1"
}

// Device returns the owning device.
func (s *Service) Device() *Device {
	return s.device
}

// SCPDURL is the absolute path of the service description document.
func (s *Service) SCPDURL() string {
	return s.device.Path() + "/" + s.Type
}

// ControlURL is the absolute path of the SOAP control endpoint.
func (s *Service) ControlURL() string {
	return s.SCPDURL() + "/control"
}

// EventSubURL is the absolute path reserved for GENA subscriptions.
func (s *Service) EventSubURL() string {
	return s.SCPDURL() + "/event_sub"
}

// Ref returns the serviceList entry for the device description.
func (s *Service) Ref() description.ServiceRef {
	return description.ServiceRef{
		ServiceType: s.TypeURN(),
		ServiceID:   s.ID,
		SCPDURL:     s.SCPDURL(),
		ControlURL:  s.ControlURL(),
		EventSubURL: s.EventSubURL(),
	}
}

// AddVariable declares a state variable. Variable names are unique
// within the service.
func (s *Service) AddVariable(v StateVariable) error {
	if s.device != nil && s.device.Root().frozen {
		return ErrFrozen
	}
	for _, existing := range s.variables {
		if existing.Name == v.Name {
			return fmt.Errorf("device: variable %s already declared on %s", v.Name, s.Type)
		}
	}
	s.variables = append(s.variables, &v)
	return nil
}

// AddAction declares an action with its handler. Every argument must
// reference a declared state variable; the retval rules are checked
// later, when Router registers the action.
func (s *Service) AddAction(name string, handler soap.Handler, args ...Argument) error {
	if s.device != nil && s.device.Root().frozen {
		return ErrFrozen
	}
	for _, existing := range s.actions {
		if existing.Name == name {
			return fmt.Errorf("device: action %s already declared on %s", name, s.Type)
		}
	}
	for _, arg := range args {
		if s.variable(arg.RelatedStateVariable) == nil {
			return fmt.Errorf("device: action %s argument %s references unknown variable %s",
				name, arg.Name, arg.RelatedStateVariable)
		}
	}
	s.actions = append(s.actions, &Action{Name: name, Args: args, Handler: handler})
	return nil
}

// Actions returns the declared actions in declaration order.
func (s *Service) Actions() []*Action {
	return s.actions
}

// Variables returns the declared state variables in declaration order.
func (s *Service) Variables() []*StateVariable {
	return s.variables
}

func (s *Service) variable(name string) *StateVariable {
	for _, v := range s.variables {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// SCPD renders the Service Control Protocol Definition document.
func (s *Service) SCPD() ([]byte, error) {
	doc := &description.SCPD{}
	for _, a := range s.actions {
		action := description.Action{Name: a.Name}
		for _, arg := range a.Args {
			action.Arguments = append(action.Arguments, description.Argument{
				Direction:            scpdDirection(arg.Direction),
				Name:                 arg.Name,
				RelatedStateVariable: arg.RelatedStateVariable,
			})
		}
		doc.Actions = append(doc.Actions, action)
	}
	for _, v := range s.variables {
		sv := description.StateVariable{
			SendEvents:    sendEvents(v.Evented),
			Name:          v.Name,
			DataType:      v.DataType,
			DefaultValue:  v.Default,
			AllowedValues: v.AllowedValues,
		}
		if v.AllowedRange != nil {
			sv.AllowedRange = &description.AllowedRange{
				Min:  formatNumber(v.AllowedRange.Min),
				Max:  formatNumber(v.AllowedRange.Max),
				Step: stepString(v.AllowedRange.Step),
			}
		}
		doc.Variables = append(doc.Variables, sv)
	}
	return description.EncodeSCPD(doc)
}

// Router builds the SOAP dispatcher for this service: one registered
// entry per action, argument types resolved through the state table.
func (s *Service) Router(logger *zap.Logger) (*soap.Router, error) {
	r := soap.NewRouter(s.TypeURN(), logger)
	for _, a := range s.actions {
		args := make([]soap.Arg, 0, len(a.Args))
		for _, arg := range a.Args {
			v := s.variable(arg.RelatedStateVariable)
			if v == nil {
				return nil, fmt.Errorf("device: action %s argument %s references unknown variable %s",
					a.Name, arg.Name, arg.RelatedStateVariable)
			}
			args = append(args, soap.Arg{
				Direction: arg.Direction,
				Name:      arg.Name,
				Type:      v.DataType,
			})
		}
		if err := r.Register(soap.Action{Name: a.Name, Args: args, Handler: a.Handler}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SCPD directions collapse retval into out; the retval distinction
// only orders the response parameters.
func scpdDirection(d soap.Direction) string {
	if d == soap.RetVal {
		return string(soap.Out)
	}
	return string(d)
}

func sendEvents(evented bool) string {
	if evented {
		return "yes"
	}
	return "no"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func stepString(f float64) string {
	if f == 0 {
		return ""
	}
	return formatNumber(f)
}
