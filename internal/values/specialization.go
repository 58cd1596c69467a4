// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package values

import (
	"strings"
)

// specOrEqual reports whether specific is equal to or a specialization of
// general. It is the building block for the parameterized type rules below.
func specOrEqual(general, specific Type) bool {
	if general == nil || specific == nil {
		return general == nil
	}
	return Equals(general, specific) || general.IsSpecialization(specific)
}

func (AnyType) IsSpecialization(Type) bool { return true }

func (UndefType) IsSpecialization(other Type) bool {
	_, ok := other.(UndefType)
	return ok
}

func (DefaultType) IsSpecialization(other Type) bool {
	_, ok := other.(DefaultType)
	return ok
}

func (BooleanType) IsSpecialization(other Type) bool {
	_, ok := other.(BooleanType)
	return ok
}

func (NumericType) IsSpecialization(other Type) bool {
	switch other.(type) {
	case NumericType, IntegerType, FloatType:
		return true
	}
	return false
}

func (ScalarType) IsSpecialization(other Type) bool {
	switch other.(type) {
	case ScalarType, NumericType, IntegerType, FloatType, StringType, BooleanType, RegexpType, EnumType, PatternType:
		return true
	}
	return false
}

func (DataType) IsSpecialization(other Type) bool {
	switch other.(type) {
	case DataType, UndefType, ScalarType, NumericType, IntegerType, FloatType, StringType, BooleanType, EnumType, PatternType:
		return true
	case ArrayType, HashType, TupleType, StructType:
		return true
	}
	return false
}

func (CollectionType) IsSpecialization(other Type) bool {
	switch other.(type) {
	case CollectionType, ArrayType, HashType, TupleType, StructType:
		return true
	}
	return false
}

func (t IntegerType) IsSpecialization(other Type) bool {
	o, ok := other.(IntegerType)
	return ok && o.From >= t.From && o.To <= t.To
}

func (t FloatType) IsSpecialization(other Type) bool {
	o, ok := other.(FloatType)
	return ok && o.From >= t.From && o.To <= t.To
}

func (t StringType) IsSpecialization(other Type) bool {
	switch o := other.(type) {
	case StringType:
		return o.MinLen >= t.MinLen && o.MaxLen <= t.MaxLen
	case EnumType:
		// Every enum value is a string; length bounds still apply.
		for _, v := range o.Values {
			if int64(len(v)) < t.MinLen || int64(len(v)) > t.MaxLen {
				return false
			}
		}
		return true
	}
	return false
}

func (t RegexpType) IsSpecialization(other Type) bool {
	o, ok := other.(RegexpType)
	return ok && (t.Pattern == "" || t.Pattern == o.Pattern)
}

func (t EnumType) IsSpecialization(other Type) bool {
	o, ok := other.(EnumType)
	if !ok {
		return false
	}
	if len(t.Values) == 0 {
		return true
	}
	for _, v := range o.Values {
		if !t.IsInstance(String(v)) {
			return false
		}
	}
	return len(o.Values) > 0
}

func (t PatternType) IsSpecialization(other Type) bool {
	switch o := other.(type) {
	case PatternType:
		if len(t.Patterns) == 0 {
			return true
		}
		have := make(map[string]bool, len(t.Patterns))
		for _, p := range t.Patterns {
			have[p.Pattern] = true
		}
		for _, p := range o.Patterns {
			if !have[p.Pattern] {
				return false
			}
		}
		return true
	case EnumType:
		for _, v := range o.Values {
			if !t.IsInstance(String(v)) {
				return false
			}
		}
		return len(o.Values) > 0
	}
	return false
}

func (t ArrayType) IsSpecialization(other Type) bool {
	switch o := other.(type) {
	case ArrayType:
		if o.Min < t.Min || o.Max > t.Max {
			return false
		}
		element := t.ElementType
		if element == nil {
			element = AnyType{}
		}
		oe := o.ElementType
		if oe == nil {
			oe = AnyType{}
		}
		return specOrEqual(element, oe)
	case TupleType:
		element := t.ElementType
		if element == nil {
			element = AnyType{}
		}
		for _, m := range o.Types {
			if !specOrEqual(element, m) {
				return false
			}
		}
		return true
	}
	return false
}

func (t HashType) IsSpecialization(other Type) bool {
	switch o := other.(type) {
	case HashType:
		if o.Min < t.Min || o.Max > t.Max {
			return false
		}
		key, value := t.KeyType, t.ValueType
		if key == nil {
			key = AnyType{}
		}
		if value == nil {
			value = AnyType{}
		}
		okey, oval := o.KeyType, o.ValueType
		if okey == nil {
			okey = AnyType{}
		}
		if oval == nil {
			oval = AnyType{}
		}
		return specOrEqual(key, okey) && specOrEqual(value, oval)
	case StructType:
		value := t.ValueType
		if value == nil {
			value = AnyType{}
		}
		for _, e := range o.Schema {
			if !specOrEqual(value, e.Type) {
				return false
			}
		}
		return true
	}
	return false
}

func (t TupleType) IsSpecialization(other Type) bool {
	o, ok := other.(TupleType)
	if !ok || len(o.Types) != len(t.Types) {
		return false
	}
	for i := range t.Types {
		if !specOrEqual(t.Types[i], o.Types[i]) {
			return false
		}
	}
	return true
}

func (t StructType) IsSpecialization(other Type) bool {
	o, ok := other.(StructType)
	if !ok || len(o.Schema) != len(t.Schema) {
		return false
	}
	byKey := make(map[string]Type, len(t.Schema))
	for _, e := range t.Schema {
		byKey[strings.ToLower(e.Key)] = e.Type
	}
	for _, e := range o.Schema {
		expected, present := byKey[strings.ToLower(e.Key)]
		if !present || !specOrEqual(expected, e.Type) {
			return false
		}
	}
	return true
}

func (t VariantType) IsSpecialization(other Type) bool {
	if o, ok := other.(VariantType); ok {
		for _, m := range o.Types {
			if !t.IsSpecialization(m) && !Equals(t, m) {
				return false
			}
		}
		return len(o.Types) > 0
	}
	for _, m := range t.Types {
		if specOrEqual(m, other) {
			return true
		}
	}
	return false
}

func (t OptionalType) IsSpecialization(other Type) bool {
	if _, ok := other.(UndefType); ok {
		return true
	}
	if o, ok := other.(OptionalType); ok {
		return specOrEqual(t.Type, o.Type)
	}
	return t.Type != nil && specOrEqual(t.Type, other)
}

func (t TypeType) IsSpecialization(other Type) bool {
	o, ok := other.(TypeType)
	if !ok {
		return false
	}
	if t.Type == nil {
		return true
	}
	return specOrEqual(t.Type, o.Type)
}

func (CallableType) IsSpecialization(other Type) bool {
	_, ok := other.(CallableType)
	return ok
}

func (CatalogEntryType) IsSpecialization(other Type) bool {
	switch other.(type) {
	case CatalogEntryType, ResourceType, ClassType:
		return true
	}
	return false
}

func (t ResourceType) IsSpecialization(other Type) bool {
	o, ok := other.(ResourceType)
	if !ok {
		return false
	}
	if t.Name != "" && !strings.EqualFold(t.Name, o.Name) {
		return false
	}
	if t.Title != "" && t.Title != o.Title {
		return false
	}
	return true
}

func (t ClassType) IsSpecialization(other Type) bool {
	o, ok := other.(ClassType)
	if !ok {
		return false
	}
	return t.Title == "" || strings.EqualFold(t.Title, o.Title)
}

// TypeByName returns the unparameterized type for a bare type name appearing
// in source, or a resource type reference for names that are not built in.
func TypeByName(name string) Type {
	switch strings.ToLower(name) {
	case "any":
		return AnyType{}
	case "undef":
		return UndefType{}
	case "default":
		return DefaultType{}
	case "boolean":
		return BooleanType{}
	case "numeric":
		return NumericType{}
	case "scalar":
		return ScalarType{}
	case "data":
		return DataType{}
	case "collection":
		return CollectionType{}
	case "integer":
		return NewIntegerType()
	case "float":
		return NewFloatType()
	case "string":
		return NewStringType()
	case "regexp":
		return RegexpType{}
	case "enum":
		return EnumType{}
	case "pattern":
		return PatternType{}
	case "array":
		return NewArrayType(AnyType{})
	case "hash":
		return NewHashType(AnyType{}, AnyType{})
	case "tuple":
		return TupleType{}
	case "struct":
		return StructType{}
	case "variant":
		return VariantType{}
	case "optional":
		return OptionalType{}
	case "type":
		return TypeType{}
	case "callable":
		return CallableType{}
	case "catalogentry":
		return CatalogEntryType{}
	case "resource":
		return ResourceType{}
	case "class":
		return ClassType{}
	default:
		// Unknown type names are resource type references: File, Package, ...
		return ResourceType{Name: strings.ToLower(name)}
	}
}

// TypeOf returns the type of a value, following the rule that containers
// report their generic type rather than an inferred element type.
func TypeOf(v Value) Type {
	switch v := Deref(v).(type) {
	case Undef:
		return UndefType{}
	case Default:
		return DefaultType{}
	case Boolean:
		return BooleanType{}
	case Integer:
		return NewIntegerType()
	case Float:
		return NewFloatType()
	case String:
		return NewStringType()
	case *Regexp:
		return RegexpType{}
	case *Array:
		return NewArrayType(AnyType{})
	case *Hash:
		return NewHashType(AnyType{}, AnyType{})
	case Type:
		return TypeType{Type: v}
	default:
		return AnyType{}
	}
}
