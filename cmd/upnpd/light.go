package main

import (
	"sync/atomic"

	"github.com/seattlerb/upnp/pkg/device"
	"github.com/seattlerb/upnp/pkg/soap"
)

// lightClass is the demo device upnpd hosts: a BinaryLight with the
// classic SwitchPower service (SetTarget / GetTarget / GetStatus).
func lightClass() device.Class {
	var target atomic.Bool

	return device.Class{
		Type: "BinaryLight",
		ServiceIDs: map[string]string{
			"SwitchPower": device.ServiceID("upnp.org", "SwitchPower"),
		},
		Setup: func(d *device.Device) error {
			if d.Manufacturer == "" {
				d.Manufacturer = "seattlerb"
			}
			if d.ModelName == "" {
				d.ModelName = "upnpd"
			}
			d.ModelDescription = "Demonstration binary light"

			svc, err := d.AddService("SwitchPower")
			if err != nil {
				return err
			}

			vars := []device.StateVariable{
				{Name: "Target", DataType: "boolean", Default: "0"},
				{Name: "Status", DataType: "boolean", Default: "0", Evented: true},
			}
			for _, v := range vars {
				if err := svc.AddVariable(v); err != nil {
					return err
				}
			}

			err = svc.AddAction("SetTarget",
				func(ctx *soap.Context, in []any) ([]any, error) {
					target.Store(in[0].(bool))
					return nil, nil
				},
				device.Argument{Direction: soap.In, Name: "newTargetValue", RelatedStateVariable: "Target"},
			)
			if err != nil {
				return err
			}

			err = svc.AddAction("GetTarget",
				func(ctx *soap.Context, in []any) ([]any, error) {
					return []any{target.Load()}, nil
				},
				device.Argument{Direction: soap.RetVal, Name: "RetTargetValue", RelatedStateVariable: "Target"},
			)
			if err != nil {
				return err
			}

			return svc.AddAction("GetStatus",
				func(ctx *soap.Context, in []any) ([]any, error) {
					return []any{target.Load()}, nil
				},
				device.Argument{Direction: soap.RetVal, Name: "ResultStatus", RelatedStateVariable: "Status"},
			)
		},
	}
}
