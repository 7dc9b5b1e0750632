// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file turns a decoded object tree into a Document. All adapters share
// it, so the structural rules of a configuration are enforced in one place.
package config

import (
	"github.com/specialistvlad/mcugraph/internal/catalog"
	"github.com/specialistvlad/mcugraph/internal/errcode"
)

// Top-level and well-known keys of a configuration document.
const (
	KeyFirmware   = "firmware"
	KeyDevices    = "devices"
	KeyDeviceName = "device_name"
	KeyMCUModel   = "mcu_model"
	KeyI2CBus     = "i2c_bus"
	KeySysTick    = "sys_tick"
	KeyDevID      = "dev_id"
	KeyRequires   = "requires"
)

// FromObject builds a Document from the root object of a configuration file.
func FromObject(root *Object) (*Document, error) {
	doc := &Document{Raw: root}

	fwRaw, ok := root.Get(KeyFirmware)
	if !ok {
		return nil, errcode.New(errcode.StructuralValidation, "", "configuration has no %q section", KeyFirmware)
	}
	fwObj, ok := fwRaw.(*Object)
	if !ok {
		return nil, errcode.New(errcode.StructuralValidation, "", "%q must be an object", KeyFirmware)
	}
	fw, err := firmwareFromObject(fwObj)
	if err != nil {
		return nil, err
	}
	doc.Firmware = *fw

	devRaw, ok := root.Get(KeyDevices)
	if !ok {
		return doc, nil
	}
	devObj, ok := devRaw.(*Object)
	if !ok {
		return nil, errcode.New(errcode.StructuralValidation, "", "%q must be an object", KeyDevices)
	}
	for _, groupName := range devObj.Keys() {
		v, _ := devObj.Get(groupName)
		gObj, ok := v.(*Object)
		if !ok {
			return nil, errcode.New(errcode.StructuralValidation, "", "device group %s must be an object", groupName)
		}
		group := &Group{Name: groupName}
		for _, devName := range gObj.Keys() {
			dv, _ := gObj.Get(devName)
			dObj, ok := dv.(*Object)
			if !ok {
				return nil, errcode.New(errcode.StructuralValidation, devName, "device configuration must be an object")
			}
			dev, err := deviceFromObject(devName, dObj)
			if err != nil {
				return nil, err
			}
			group.Devices = append(group.Devices, dev)
		}
		doc.Groups = append(doc.Groups, group)
	}
	return doc, nil
}

func firmwareFromObject(o *Object) (*Firmware, error) {
	fw := &Firmware{Fields: o.Without(KeyDeviceName, KeyMCUModel, KeyI2CBus, KeySysTick)}

	var ok bool
	v, _ := o.Get(KeyDeviceName)
	if fw.DeviceName, ok = AsString(v); !ok || fw.DeviceName == "" {
		return nil, errcode.New(errcode.StructuralValidation, "", "firmware %q must be a non-empty string", KeyDeviceName)
	}
	v, _ = o.Get(KeyMCUModel)
	if fw.MCUModel, ok = AsString(v); !ok || fw.MCUModel == "" {
		return nil, errcode.New(errcode.StructuralValidation, "", "firmware %q must be a non-empty string", KeyMCUModel)
	}

	for _, key := range []string{KeyI2CBus, KeySysTick} {
		raw, present := o.Get(key)
		if !present {
			continue
		}
		obj, isObj := raw.(*Object)
		if !isObj {
			return nil, errcode.New(errcode.StructuralValidation, "", "firmware %q must be an object", key)
		}
		sec, err := sectionFromObject(key, obj)
		if err != nil {
			return nil, err
		}
		if key == KeyI2CBus {
			fw.I2CBus = sec
		} else {
			fw.SysTick = sec
		}
	}
	return fw, nil
}

func sectionFromObject(name string, o *Object) (*Section, error) {
	sec := &Section{Fields: o.Without(KeyRequires)}
	if v, ok := o.Get(KeyRequires); ok {
		req, err := RequiresFromValue(name, v)
		if err != nil {
			return nil, err
		}
		sec.Requires = req
	}
	return sec, nil
}

func deviceFromObject(name string, o *Object) (*Device, error) {
	dev := &Device{Name: name, Fields: o.Without(KeyDevID, KeyRequires)}
	dev.DevID, dev.HasDevID = o.Get(KeyDevID)
	if v, ok := o.Get(KeyRequires); ok {
		req, err := RequiresFromValue(name, v)
		if err != nil {
			return nil, err
		}
		dev.Requires = req
	}
	return dev, nil
}

// RequiresFromValue converts a decoded requires section: strings become
// leaves and objects become nested requirements.
func RequiresFromValue(owner string, v any) (catalog.Requires, error) {
	var out catalog.Requires
	if v == nil {
		return out, nil
	}
	obj, ok := v.(*Object)
	if !ok {
		return out, errcode.New(errcode.MalformedRequirement, owner, "requires must be an object")
	}
	for _, role := range obj.Keys() {
		item, _ := obj.Get(role)
		switch t := item.(type) {
		case string:
			out.Set(role, catalog.Leaf{Name: t})
		case *Object:
			nested, err := RequiresFromValue(owner, t)
			if err != nil {
				return out, err
			}
			out.Set(role, catalog.Nested{Requires: nested})
		default:
			return out, errcode.New(errcode.MalformedRequirement, owner, "requirement %s must be a resource name or an object", role)
		}
	}
	return out, nil
}
