package config

import (
	"reflect"
)

// Overlay copies every non-zero field of src onto dst. The CLI uses it to
// let explicitly set flags win over file and environment values.
func Overlay(dst, src *Config) {
	if dst == nil || src == nil {
		return
	}
	overlayStruct(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func overlayStruct(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		d, s := dst.Field(i), src.Field(i)
		if !d.CanSet() {
			continue
		}
		if d.Kind() == reflect.Struct {
			overlayStruct(d, s)
			continue
		}
		if !s.IsZero() {
			d.Set(s)
		}
	}
}
