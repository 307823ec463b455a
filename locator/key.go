package locator

import (
	"fmt"
	"reflect"
)

// ServiceKey is the identity of a registration: the declared service type
// plus an optional instance name. Two keys are equal iff both fields match,
// so ServiceKey is usable directly as a map key.
type ServiceKey struct {
	Type reflect.Type
	Name string
}

// KeyOf builds the ServiceKey for type T. Pass "" for the unnamed default
// registration of T.
//
//	key := locator.KeyOf[*Database]("primary")
func KeyOf[T any](name string) ServiceKey {
	return ServiceKey{Type: typeOf[T](), Name: name}
}

// String renders the key as "pkg.Type" or "pkg.Type[name]".
func (k ServiceKey) String() string {
	if k.Name == "" {
		return k.Type.String()
	}
	return fmt.Sprintf("%s[%s]", k.Type, k.Name)
}

// typeOf returns the reflect.Type for T without requiring a value of T.
// This works for interface types too, unlike reflect.TypeOf on a zero value.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
