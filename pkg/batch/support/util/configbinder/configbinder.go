// Package configbinder binds loosely typed property maps from configuration onto typed structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds a map of properties to a target struct using mapstructure.
// Fields are matched by their "yaml" tag and scalar strings are converted to the
// field's type (e.g. "3" to int, "true" to bool).
func BindProperties(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType != nil && targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %v: %w", targetType, err)
	}
	return nil
}

// BindStringProperties is BindProperties for flat string maps such as those read from
// environment variables.
func BindStringProperties(properties map[string]string, target interface{}) error {
	intermediate := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		intermediate[k] = v
	}
	return BindProperties(intermediate, target)
}
