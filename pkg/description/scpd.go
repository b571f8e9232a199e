package description

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// SCPD is the Service Control Protocol Definition document.
type SCPD struct {
	XMLName     xml.Name        `xml:"urn:schemas-upnp-org:service-1-0 scpd"`
	SpecVersion SpecVersion     `xml:"specVersion"`
	Actions     []Action        `xml:"actionList>action"`
	Variables   []StateVariable `xml:"serviceStateTable>stateVariable"`
}

// Action is one <action> entry. Arguments keep declared order.
type Action struct {
	Name      string     `xml:"name"`
	Arguments []Argument `xml:"argumentList>argument"`
}

// Argument is one declared action parameter.
type Argument struct {
	Direction            string `xml:"direction"`
	Name                 string `xml:"name"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

// StateVariable is one state table entry.
type StateVariable struct {
	SendEvents    string        `xml:"sendEvents,attr"`
	Name          string        `xml:"name"`
	DataType      string        `xml:"dataType"`
	DefaultValue  string        `xml:"defaultValue,omitempty"`
	AllowedValues []string      `xml:"allowedValueList>allowedValue"`
	AllowedRange  *AllowedRange `xml:"allowedValueRange"`
}

// AllowedRange is a numeric allowed-value range.
type AllowedRange struct {
	Min  string `xml:"minimum"`
	Max  string `xml:"maximum"`
	Step string `xml:"step,omitempty"`
}

// EncodeSCPD renders the SCPD with actions sorted lexicographically by
// name, which keeps output stable regardless of registration order.
func EncodeSCPD(scpd *SCPD) ([]byte, error) {
	scpd.SpecVersion = SpecVersion{Major: 1, Minor: 0}
	sort.SliceStable(scpd.Actions, func(i, j int) bool {
		return scpd.Actions[i].Name < scpd.Actions[j].Name
	})
	body, err := xml.MarshalIndent(scpd, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("description: encode scpd: %w", err)
	}
	return append([]byte(Header), body...), nil
}

// DecodeSCPD parses a remote SCPD, validating the namespace and the
// spec version and rejecting identifiers that could smuggle markup
// into later SOAP requests.
func DecodeSCPD(r io.Reader) (*SCPD, error) {
	var scpd SCPD
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&scpd); err != nil {
		return nil, fmt.Errorf("description: decode scpd: %w", err)
	}
	if scpd.XMLName.Space != ServiceNamespace {
		return nil, fmt.Errorf("%w: namespace %q", ErrBadDocument, scpd.XMLName.Space)
	}
	if err := checkVersion(scpd.SpecVersion); err != nil {
		return nil, err
	}

	for i := range scpd.Actions {
		a := &scpd.Actions[i]
		a.Name = strings.TrimSpace(a.Name)
		if !identRe.MatchString(a.Name) {
			return nil, fmt.Errorf("%w: unsafe action name %q", ErrBadDocument, a.Name)
		}
		for j := range a.Arguments {
			arg := &a.Arguments[j]
			arg.Direction = strings.TrimSpace(arg.Direction)
			arg.Name = strings.TrimSpace(arg.Name)
			arg.RelatedStateVariable = strings.TrimSpace(arg.RelatedStateVariable)
		}
	}
	for i := range scpd.Variables {
		v := &scpd.Variables[i]
		v.Name = strings.TrimSpace(v.Name)
		v.DataType = strings.TrimSpace(v.DataType)
		v.DefaultValue = strings.TrimSpace(v.DefaultValue)
		if !identRe.MatchString(v.DefaultValue) {
			return nil, fmt.Errorf("%w: unsafe default value %q", ErrBadDocument, v.DefaultValue)
		}
		for j := range v.AllowedValues {
			v.AllowedValues[j] = strings.TrimSpace(v.AllowedValues[j])
			if !identRe.MatchString(v.AllowedValues[j]) {
				return nil, fmt.Errorf("%w: unsafe allowed value %q", ErrBadDocument, v.AllowedValues[j])
			}
		}
	}
	return &scpd, nil
}
