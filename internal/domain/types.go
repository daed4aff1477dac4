package domain

import "fmt"

// Kind classifies a declared property, parameter or return type.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	// KindProxy is a reference to an object sent as the named proxy type.
	KindProxy
	// KindAnyProxy accepts whatever proxy type the object maps to.
	KindAnyProxy
	// KindEntityID is a reference whose target may be dead without error.
	KindEntityID
	KindList
	KindSet
	// KindAny is classified by the runtime value.
	KindAny
	KindVoid
)

// TypeRef is a declared type as the client sees it.
// Name is set for KindProxy and KindEntityID, Elem for KindList and KindSet.
type TypeRef struct {
	Kind Kind
	Name string
	Elem *TypeRef
}

var (
	StringType   = TypeRef{Kind: KindString}
	IntType      = TypeRef{Kind: KindInt}
	FloatType    = TypeRef{Kind: KindFloat}
	BoolType     = TypeRef{Kind: KindBool}
	DateType     = TypeRef{Kind: KindDate}
	AnyProxyType = TypeRef{Kind: KindAnyProxy}
	AnyType      = TypeRef{Kind: KindAny}
	VoidType     = TypeRef{Kind: KindVoid}
)

// ProxyOf refers to the named proxy type.
func ProxyOf(name string) TypeRef {
	return TypeRef{Kind: KindProxy, Name: name}
}

// IDOf refers to an entity id of the named proxy type. An empty name
// accepts any entity type.
func IDOf(name string) TypeRef {
	return TypeRef{Kind: KindEntityID, Name: name}
}

// ListOf is an ordered collection.
func ListOf(elem TypeRef) TypeRef {
	return TypeRef{Kind: KindList, Elem: &elem}
}

// SetOf is a collection without duplicates.
func SetOf(elem TypeRef) TypeRef {
	return TypeRef{Kind: KindSet, Elem: &elem}
}

// IsScalar reports whether values of t pass through the value codec.
func (t TypeRef) IsScalar() bool {
	switch t.Kind {
	case KindString, KindInt, KindFloat, KindBool, KindDate:
		return true
	}
	return false
}

// IsCollection reports whether t is a list or set.
func (t TypeRef) IsCollection() bool {
	return t.Kind == KindList || t.Kind == KindSet
}

// IsReference reports whether t refers to a proxy.
func (t TypeRef) IsReference() bool {
	switch t.Kind {
	case KindProxy, KindAnyProxy, KindEntityID:
		return true
	}
	return false
}

// ElemType returns the element type of a collection, or AnyType.
func (t TypeRef) ElemType() TypeRef {
	if t.Elem == nil {
		return AnyType
	}
	return *t.Elem
}

// Equal compares two type refs structurally.
func (t TypeRef) Equal(o TypeRef) bool {
	return t.String() == o.String()
}

func (t TypeRef) String() string {
	switch t.Kind {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindProxy:
		return "proxy(" + t.Name + ")"
	case KindAnyProxy:
		return "proxy"
	case KindEntityID:
		return "id(" + t.Name + ")"
	case KindList:
		return "list<" + t.ElemType().String() + ">"
	case KindSet:
		return "set<" + t.ElemType().String() + ">"
	case KindAny:
		return "any"
	case KindVoid:
		return "void"
	}
	return fmt.Sprintf("kind(%d)", int(t.Kind))
}
