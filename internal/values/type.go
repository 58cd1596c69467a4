// Copyright (c) The Nomos Authors
// SPDX-License-Identifier: MPL-2.0

package values

import (
	"fmt"
	"math"
	"strings"
)

// Type is a member of the language's type algebra. Types are themselves
// values, so they can be stored in variables, compared and passed to
// functions.
//
// IsInstance reports whether a value belongs to the type. IsSpecialization
// reports whether other is a (strictly or equally) more specific type than
// the receiver; the comparison operators build on it: T1 <= T2 holds when
// the types are equal or T2 is a specialization of T1.
type Type interface {
	Value
	TypeName() string
	IsInstance(v Value) bool
	IsSpecialization(other Type) bool
}

// AnyType matches every value.
type AnyType struct{}

// UndefType matches only undef.
type UndefType struct{}

// DefaultType matches only the default marker.
type DefaultType struct{}

// BooleanType matches booleans.
type BooleanType struct{}

// NumericType matches integers and floats.
type NumericType struct{}

// ScalarType matches numerics, strings, booleans and regular expressions.
type ScalarType struct{}

// DataType matches integers, floats, strings, booleans, undef, and
// arrays/hashes of Data. Regular expressions are not Data.
type DataType struct{}

// CollectionType matches arrays and hashes.
type CollectionType struct{}

// IntegerType matches 64-bit integers within an inclusive range.
type IntegerType struct {
	From int64
	To   int64
}

// NewIntegerType returns the unbounded integer type.
func NewIntegerType() IntegerType {
	return IntegerType{From: math.MinInt64, To: math.MaxInt64}
}

// FloatType matches 64-bit floats within an inclusive range.
type FloatType struct {
	From float64
	To   float64
}

// NewFloatType returns the unbounded float type.
func NewFloatType() FloatType {
	return FloatType{From: math.Inf(-1), To: math.Inf(1)}
}

// StringType matches strings with a length within an inclusive range.
type StringType struct {
	MinLen int64
	MaxLen int64
}

// NewStringType returns the unconstrained string type.
func NewStringType() StringType {
	return StringType{MinLen: 0, MaxLen: math.MaxInt64}
}

// RegexpType matches regular expression values, optionally constrained to an
// exact pattern.
type RegexpType struct {
	Pattern string
}

// EnumType matches strings drawn from a fixed set (case-insensitively).
type EnumType struct {
	Values []string
}

// PatternType matches strings that match any of a set of regular
// expressions. An empty set matches every string.
type PatternType struct {
	Patterns []*Regexp
}

// ArrayType matches arrays whose elements are instances of ElementType and
// whose length is within an inclusive range.
type ArrayType struct {
	ElementType Type
	Min         int64
	Max         int64
}

// NewArrayType returns an unconstrained array type over the given element
// type.
func NewArrayType(element Type) ArrayType {
	return ArrayType{ElementType: element, Min: 0, Max: math.MaxInt64}
}

// HashType matches hashes with the given key and value types and a size
// within an inclusive range.
type HashType struct {
	KeyType   Type
	ValueType Type
	Min       int64
	Max       int64
}

// NewHashType returns an unconstrained hash type over the given key and
// value types.
func NewHashType(key, value Type) HashType {
	return HashType{KeyType: key, ValueType: value, Min: 0, Max: math.MaxInt64}
}

// TupleType matches arrays whose elements match a positional list of types.
// Min and Max bound the accepted length; elements beyond the listed types
// must match the final type.
type TupleType struct {
	Types []Type
	Min   int64
	Max   int64
}

// StructEntry is a single key of a StructType schema.
type StructEntry struct {
	Key  string
	Type Type
}

// StructType matches hashes with string keys drawn from a fixed schema.
// Keys whose type accepts undef are optional.
type StructType struct {
	Schema []StructEntry
}

// VariantType matches values that are an instance of any member type.
type VariantType struct {
	Types []Type
}

// OptionalType matches undef plus instances of the wrapped type. A nil
// wrapped type matches only undef.
type OptionalType struct {
	Type Type
}

// TypeType is the meta type: it matches type values, optionally constrained
// to specializations of a particular type.
type TypeType struct {
	Type Type
}

// CallableType matches nothing at runtime; it exists so signatures can be
// written down. Lambdas are not first-class values in this implementation.
type CallableType struct{}

// CatalogEntryType is the common ancestor of resource and class references.
type CatalogEntryType struct{}

// ResourceType is a reference to a resource type, optionally qualified with
// a title. Resource["file"] names a type; Resource["file", "/tmp/x"] (or the
// File["/tmp/x"] sugar) names a particular resource.
type ResourceType struct {
	Name  string
	Title string
}

// ClassType is a reference to a class, optionally qualified with a name.
type ClassType struct {
	Title string
}

func (AnyType) value()          {}
func (UndefType) value()        {}
func (DefaultType) value()      {}
func (BooleanType) value()      {}
func (NumericType) value()      {}
func (ScalarType) value()       {}
func (DataType) value()         {}
func (CollectionType) value()   {}
func (IntegerType) value()      {}
func (FloatType) value()        {}
func (StringType) value()       {}
func (RegexpType) value()       {}
func (EnumType) value()         {}
func (PatternType) value()      {}
func (ArrayType) value()        {}
func (HashType) value()         {}
func (TupleType) value()        {}
func (StructType) value()       {}
func (VariantType) value()      {}
func (OptionalType) value()     {}
func (TypeType) value()         {}
func (CallableType) value()     {}
func (CatalogEntryType) value() {}
func (ResourceType) value()     {}
func (ClassType) value()        {}

func (AnyType) TypeName() string          { return "Any" }
func (UndefType) TypeName() string        { return "Undef" }
func (DefaultType) TypeName() string      { return "Default" }
func (BooleanType) TypeName() string      { return "Boolean" }
func (NumericType) TypeName() string      { return "Numeric" }
func (ScalarType) TypeName() string       { return "Scalar" }
func (DataType) TypeName() string         { return "Data" }
func (CollectionType) TypeName() string   { return "Collection" }
func (IntegerType) TypeName() string      { return "Integer" }
func (FloatType) TypeName() string        { return "Float" }
func (StringType) TypeName() string       { return "String" }
func (RegexpType) TypeName() string       { return "Regexp" }
func (EnumType) TypeName() string         { return "Enum" }
func (PatternType) TypeName() string      { return "Pattern" }
func (ArrayType) TypeName() string        { return "Array" }
func (HashType) TypeName() string         { return "Hash" }
func (TupleType) TypeName() string        { return "Tuple" }
func (StructType) TypeName() string       { return "Struct" }
func (VariantType) TypeName() string      { return "Variant" }
func (OptionalType) TypeName() string     { return "Optional" }
func (TypeType) TypeName() string         { return "Type" }
func (CallableType) TypeName() string     { return "Callable" }
func (CatalogEntryType) TypeName() string { return "CatalogEntry" }
func (ResourceType) TypeName() string     { return "Resource" }
func (ClassType) TypeName() string        { return "Class" }

func (AnyType) String() string          { return "Any" }
func (UndefType) String() string        { return "Undef" }
func (DefaultType) String() string      { return "Default" }
func (BooleanType) String() string      { return "Boolean" }
func (NumericType) String() string      { return "Numeric" }
func (ScalarType) String() string       { return "Scalar" }
func (DataType) String() string         { return "Data" }
func (CollectionType) String() string   { return "Collection" }
func (CallableType) String() string     { return "Callable" }
func (CatalogEntryType) String() string { return "CatalogEntry" }

func (t IntegerType) String() string {
	if t == NewIntegerType() {
		return "Integer"
	}
	return fmt.Sprintf("Integer[%d, %d]", t.From, t.To)
}

func (t FloatType) String() string {
	if t == NewFloatType() {
		return "Float"
	}
	return fmt.Sprintf("Float[%v, %v]", t.From, t.To)
}

func (t StringType) String() string {
	if t == NewStringType() {
		return "String"
	}
	return fmt.Sprintf("String[%d, %d]", t.MinLen, t.MaxLen)
}

func (t RegexpType) String() string {
	if t.Pattern == "" {
		return "Regexp"
	}
	return fmt.Sprintf("Regexp[/%s/]", t.Pattern)
}

func (t EnumType) String() string {
	if len(t.Values) == 0 {
		return "Enum"
	}
	quoted := make([]string, len(t.Values))
	for i, v := range t.Values {
		quoted[i] = "'" + v + "'"
	}
	return "Enum[" + strings.Join(quoted, ", ") + "]"
}

func (t PatternType) String() string {
	if len(t.Patterns) == 0 {
		return "Pattern"
	}
	parts := make([]string, len(t.Patterns))
	for i, p := range t.Patterns {
		parts[i] = p.String()
	}
	return "Pattern[" + strings.Join(parts, ", ") + "]"
}

func (t ArrayType) String() string {
	if t.ElementType == nil || isAny(t.ElementType) && t.Min == 0 && t.Max == math.MaxInt64 {
		return "Array"
	}
	if t.Min == 0 && t.Max == math.MaxInt64 {
		return fmt.Sprintf("Array[%s]", t.ElementType)
	}
	return fmt.Sprintf("Array[%s, %d, %d]", t.ElementType, t.Min, t.Max)
}

func (t HashType) String() string {
	if t.KeyType == nil || t.ValueType == nil || isAny(t.KeyType) && isAny(t.ValueType) && t.Min == 0 && t.Max == math.MaxInt64 {
		return "Hash"
	}
	if t.Min == 0 && t.Max == math.MaxInt64 {
		return fmt.Sprintf("Hash[%s, %s]", t.KeyType, t.ValueType)
	}
	return fmt.Sprintf("Hash[%s, %s, %d, %d]", t.KeyType, t.ValueType, t.Min, t.Max)
}

func (t TupleType) String() string {
	if len(t.Types) == 0 {
		return "Tuple"
	}
	parts := make([]string, len(t.Types))
	for i, m := range t.Types {
		parts[i] = m.String()
	}
	return "Tuple[" + strings.Join(parts, ", ") + "]"
}

func (t StructType) String() string {
	if len(t.Schema) == 0 {
		return "Struct"
	}
	parts := make([]string, len(t.Schema))
	for i, e := range t.Schema {
		parts[i] = fmt.Sprintf("'%s' => %s", e.Key, e.Type)
	}
	return "Struct[{" + strings.Join(parts, ", ") + "}]"
}

func (t VariantType) String() string {
	if len(t.Types) == 0 {
		return "Variant"
	}
	parts := make([]string, len(t.Types))
	for i, m := range t.Types {
		parts[i] = m.String()
	}
	return "Variant[" + strings.Join(parts, ", ") + "]"
}

func (t OptionalType) String() string {
	if t.Type == nil {
		return "Optional"
	}
	return fmt.Sprintf("Optional[%s]", t.Type)
}

func (t TypeType) String() string {
	if t.Type == nil {
		return "Type"
	}
	return fmt.Sprintf("Type[%s]", t.Type)
}

func (t ResourceType) String() string {
	if t.Name == "" {
		return "Resource"
	}
	title := titleCase(t.Name)
	if t.Title == "" {
		return title
	}
	return fmt.Sprintf("%s[%s]", title, t.Title)
}

func (t ClassType) String() string {
	if t.Title == "" {
		return "Class"
	}
	return fmt.Sprintf("Class[%s]", t.Title)
}

func (AnyType) IsInstance(Value) bool { return true }

func (UndefType) IsInstance(v Value) bool { return IsUndef(v) }

func (DefaultType) IsInstance(v Value) bool { return IsDefault(v) }

func (BooleanType) IsInstance(v Value) bool {
	_, ok := Deref(v).(Boolean)
	return ok
}

func (NumericType) IsInstance(v Value) bool {
	switch Deref(v).(type) {
	case Integer, Float:
		return true
	}
	return false
}

func (ScalarType) IsInstance(v Value) bool {
	switch Deref(v).(type) {
	case Integer, Float, String, Boolean, *Regexp:
		return true
	}
	return false
}

func (t DataType) IsInstance(v Value) bool {
	switch v := Deref(v).(type) {
	case Undef, Integer, Float, String, Boolean:
		return true
	case *Array:
		for _, e := range v.Elements {
			if !t.IsInstance(e) {
				return false
			}
		}
		return true
	case *Hash:
		for _, e := range v.Entries() {
			if !(ScalarType{}).IsInstance(e.Key) || !t.IsInstance(e.Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (CollectionType) IsInstance(v Value) bool {
	switch Deref(v).(type) {
	case *Array, *Hash:
		return true
	}
	return false
}

func (t IntegerType) IsInstance(v Value) bool {
	i, ok := Deref(v).(Integer)
	return ok && int64(i) >= t.From && int64(i) <= t.To
}

// Enumerable reports whether the range is bounded on both ends and ascending,
// which is what iteration functions require.
func (t IntegerType) Enumerable() bool {
	return t.From != math.MinInt64 && t.To != math.MaxInt64 && t.From <= t.To
}

// Each calls fn with (index, value) for every integer in the range, stopping
// when fn returns false.
func (t IntegerType) Each(fn func(index, value int64) bool) {
	for i, v := int64(0), t.From; v <= t.To; i, v = i+1, v+1 {
		if !fn(i, v) {
			return
		}
		if v == math.MaxInt64 {
			return
		}
	}
}

func (t FloatType) IsInstance(v Value) bool {
	switch v := Deref(v).(type) {
	case Float:
		return float64(v) >= t.From && float64(v) <= t.To
	}
	return false
}

func (t StringType) IsInstance(v Value) bool {
	s, ok := Deref(v).(String)
	return ok && int64(len(s)) >= t.MinLen && int64(len(s)) <= t.MaxLen
}

func (t RegexpType) IsInstance(v Value) bool {
	r, ok := Deref(v).(*Regexp)
	return ok && (t.Pattern == "" || t.Pattern == r.Pattern)
}

func (t EnumType) IsInstance(v Value) bool {
	s, ok := Deref(v).(String)
	if !ok {
		return false
	}
	for _, candidate := range t.Values {
		if strings.EqualFold(candidate, string(s)) {
			return true
		}
	}
	return false
}

func (t PatternType) IsInstance(v Value) bool {
	s, ok := Deref(v).(String)
	if !ok {
		return false
	}
	if len(t.Patterns) == 0 {
		return true
	}
	for _, p := range t.Patterns {
		if p.Match(string(s)) != nil {
			return true
		}
	}
	return false
}

func (t ArrayType) IsInstance(v Value) bool {
	a, ok := Deref(v).(*Array)
	if !ok {
		return false
	}
	if int64(len(a.Elements)) < t.Min || int64(len(a.Elements)) > t.Max {
		return false
	}
	element := t.ElementType
	if element == nil {
		element = AnyType{}
	}
	for _, e := range a.Elements {
		if !element.IsInstance(e) {
			return false
		}
	}
	return true
}

func (t HashType) IsInstance(v Value) bool {
	h, ok := Deref(v).(*Hash)
	if !ok {
		return false
	}
	if int64(h.Len()) < t.Min || int64(h.Len()) > t.Max {
		return false
	}
	key, value := t.KeyType, t.ValueType
	if key == nil {
		key = AnyType{}
	}
	if value == nil {
		value = AnyType{}
	}
	for _, e := range h.Entries() {
		if !key.IsInstance(e.Key) || !value.IsInstance(e.Value) {
			return false
		}
	}
	return true
}

func (t TupleType) IsInstance(v Value) bool {
	a, ok := Deref(v).(*Array)
	if !ok {
		return false
	}
	min, max := t.Min, t.Max
	if min == 0 && max == 0 {
		min = int64(len(t.Types))
		max = min
	}
	if int64(len(a.Elements)) < min || int64(len(a.Elements)) > max {
		return false
	}
	for i, e := range a.Elements {
		var member Type
		if i < len(t.Types) {
			member = t.Types[i]
		} else if len(t.Types) > 0 {
			member = t.Types[len(t.Types)-1]
		} else {
			member = AnyType{}
		}
		if !member.IsInstance(e) {
			return false
		}
	}
	return true
}

func (t StructType) IsInstance(v Value) bool {
	h, ok := Deref(v).(*Hash)
	if !ok {
		return false
	}
	seen := 0
	for _, entry := range t.Schema {
		value, present := h.Get(String(entry.Key))
		if !present {
			if entry.Type.IsInstance(Undef{}) {
				continue
			}
			return false
		}
		seen++
		if !entry.Type.IsInstance(value) {
			return false
		}
	}
	return seen == h.Len()
}

func (t VariantType) IsInstance(v Value) bool {
	for _, member := range t.Types {
		if member.IsInstance(v) {
			return true
		}
	}
	return false
}

func (t OptionalType) IsInstance(v Value) bool {
	if IsUndef(v) {
		return true
	}
	return t.Type != nil && t.Type.IsInstance(v)
}

func (t TypeType) IsInstance(v Value) bool {
	inner, ok := Deref(v).(Type)
	if !ok {
		return false
	}
	if t.Type == nil {
		return true
	}
	return Equals(t.Type, inner) || t.Type.IsSpecialization(inner)
}

func (CallableType) IsInstance(Value) bool { return false }

func (CatalogEntryType) IsInstance(v Value) bool {
	switch Deref(v).(type) {
	case ResourceType, ClassType:
		return true
	}
	return false
}

func (t ResourceType) IsInstance(v Value) bool {
	r, ok := Deref(v).(ResourceType)
	if !ok {
		return false
	}
	if t.Name != "" && !strings.EqualFold(t.Name, r.Name) {
		return false
	}
	if t.Title != "" && t.Title != r.Title {
		return false
	}
	return true
}

func (t ClassType) IsInstance(v Value) bool {
	c, ok := Deref(v).(ClassType)
	if !ok {
		return false
	}
	return t.Title == "" || strings.EqualFold(t.Title, c.Title)
}

// IsClass reports whether the reference names the class pseudo-resource type.
func (t ResourceType) IsClass() bool {
	return strings.EqualFold(t.Name, "class")
}

// FullyQualified reports whether both the type name and title are present.
func (t ResourceType) FullyQualified() bool {
	return t.Name != "" && t.Title != ""
}

// titleCase renders a lowercased resource type name in reference form:
// "file" => "File", "apt::source" => "Apt::Source".
func titleCase(name string) string {
	segments := strings.Split(name, "::")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		segments[i] = strings.ToUpper(seg[:1]) + seg[1:]
	}
	return strings.Join(segments, "::")
}

// ParseResourceRef parses a resource reference string of the form
// "Type[title]" into a fully qualified resource type. It returns false for
// strings not of that shape.
func ParseResourceRef(s string) (ResourceType, bool) {
	open := strings.IndexByte(s, '[')
	if open <= 0 || !strings.HasSuffix(s, "]") {
		return ResourceType{}, false
	}
	name := strings.TrimSpace(s[:open])
	title := strings.TrimSpace(s[open+1 : len(s)-1])
	if name == "" || title == "" {
		return ResourceType{}, false
	}
	title = strings.Trim(title, "'\"")
	return ResourceType{Name: strings.ToLower(name), Title: title}, true
}

func isAny(t Type) bool {
	_, ok := t.(AnyType)
	return ok
}
