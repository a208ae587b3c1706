package database

import "encoding/json"

// Opt is a value that may be absent.
type Opt[T any] struct {
	Value T
	Valid bool
}

// Some returns a present Opt holding v.
func Some[T any](v T) Opt[T] { return Opt[T]{Value: v, Valid: true} }

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) { return o.Value, o.Valid }

// IsZero reports whether the value is absent, for omitzero.
func (o Opt[T]) IsZero() bool { return !o.Valid }

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Opt[T]{}
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// EntityFlags is the decoded flags field of a row.
type EntityFlags struct {
	Removed bool     `json:"removed"`
	Tags    []string `json:"tags,omitempty"`
}

// Record is the typed form of a row. Each entity type has its own record;
// the shared byte layout only exists at the encoding boundary.
type Record interface {
	EntityType() string
	slots() []slot
}

// slot binds a field to the record member holding it. p is one of *string,
// *Opt[string], *Opt[int], *Opt[bool] or *Opt[EntityFlags].
type slot struct {
	f Field
	p any
}

type ClassRecord struct {
	Name         string           `json:"name"`
	Flags        Opt[EntityFlags] `json:"flags,omitzero"`
	Superclasses Opt[int]         `json:"superclasses,omitzero"`
	Subclasses   Opt[int]         `json:"subclasses,omitzero"`
	Members      Opt[int]         `json:"members,omitzero"`
	Ancestor     Opt[int]         `json:"ancestor,omitzero"`
	Superclass   Opt[string]      `json:"superclass,omitzero"`
	Subclass     Opt[string]      `json:"subclass,omitzero"`
	MemCat       Opt[string]      `json:"mem_cat,omitzero"`
}

func (*ClassRecord) EntityType() string { return TypeClass }

func (r *ClassRecord) slots() []slot {
	return []slot{
		{ClassName, &r.Name},
		{Flags, &r.Flags},
		{Superclasses, &r.Superclasses},
		{Subclasses, &r.Subclasses},
		{Members, &r.Members},
		{Ancestor, &r.Ancestor},
		{Superclass, &r.Superclass},
		{Subclass, &r.Subclass},
		{MemCat, &r.MemCat},
	}
}

// MemberRecord describes a property, function, event or callback. Only the
// fields declared for Kind are encoded.
type MemberRecord struct {
	Kind  string           `json:"kind"`
	Class string           `json:"class"`
	Name  string           `json:"name"`
	Flags Opt[EntityFlags] `json:"flags,omitzero"`

	ThreadSafety Opt[string] `json:"thread_safety,omitzero"`
	Security     Opt[string] `json:"security,omitzero"`

	CanSave       Opt[bool]   `json:"can_save,omitzero"`
	CanLoad       Opt[bool]   `json:"can_load,omitzero"`
	ReadSecurity  Opt[string] `json:"read_security,omitzero"`
	WriteSecurity Opt[string] `json:"write_security,omitzero"`
	ValueTypeCat  Opt[string] `json:"value_type_cat,omitzero"`
	ValueTypeName Opt[string] `json:"value_type_name,omitzero"`
	Category      Opt[string] `json:"category,omitzero"`
	Default       Opt[string] `json:"default,omitzero"`

	Returns        Opt[int]    `json:"returns,omitzero"`
	Parameters     Opt[int]    `json:"parameters,omitzero"`
	ParamTypeOpt   Opt[bool]   `json:"param_type_opt,omitzero"`
	ReturnTypeOpt  Opt[bool]   `json:"return_type_opt,omitzero"`
	ParamTypeCat   Opt[string] `json:"param_type_cat,omitzero"`
	ReturnTypeCat  Opt[string] `json:"return_type_cat,omitzero"`
	ReturnTypeName Opt[string] `json:"return_type_name,omitzero"`
	ParamTypeName  Opt[string] `json:"param_type_name,omitzero"`
	ParamName      Opt[string] `json:"param_name,omitzero"`
	ParamDefault   Opt[string] `json:"param_default,omitzero"`
}

func (r *MemberRecord) EntityType() string { return r.Kind }

func (r *MemberRecord) slots() []slot {
	return []slot{
		{ClassName, &r.Class},
		{MemberName, &r.Name},
		{Flags, &r.Flags},
		{ThreadSafety, &r.ThreadSafety},
		{Security, &r.Security},
		{CanSave, &r.CanSave},
		{CanLoad, &r.CanLoad},
		{ReadSecurity, &r.ReadSecurity},
		{WriteSecurity, &r.WriteSecurity},
		{ValueTypeCat, &r.ValueTypeCat},
		{ValueTypeName, &r.ValueTypeName},
		{Category, &r.Category},
		{Default, &r.Default},
		{Returns, &r.Returns},
		{Parameters, &r.Parameters},
		{ParamTypeOpt, &r.ParamTypeOpt},
		{ReturnTypeOpt, &r.ReturnTypeOpt},
		{ParamTypeCat, &r.ParamTypeCat},
		{ReturnTypeCat, &r.ReturnTypeCat},
		{ReturnTypeName, &r.ReturnTypeName},
		{ParamTypeName, &r.ParamTypeName},
		{ParamName, &r.ParamName},
		{ParamDefault, &r.ParamDefault},
	}
}

type EnumRecord struct {
	Name  string           `json:"name"`
	Flags Opt[EntityFlags] `json:"flags,omitzero"`
	Items Opt[int]         `json:"items,omitzero"`
}

func (*EnumRecord) EntityType() string { return TypeEnum }

func (r *EnumRecord) slots() []slot {
	return []slot{
		{EnumName, &r.Name},
		{Flags, &r.Flags},
		{EnumItems, &r.Items},
	}
}

type EnumItemRecord struct {
	Enum        string           `json:"enum"`
	Name        string           `json:"name"`
	Flags       Opt[EntityFlags] `json:"flags,omitzero"`
	LegacyNames Opt[int]         `json:"legacy_names,omitzero"`
	Value       Opt[int]         `json:"value,omitzero"`
	LegacyName  Opt[string]      `json:"legacy_name,omitzero"`
}

func (*EnumItemRecord) EntityType() string { return TypeEnumItem }

func (r *EnumItemRecord) slots() []slot {
	return []slot{
		{EnumName, &r.Enum},
		{ItemName, &r.Name},
		{Flags, &r.Flags},
		{LegacyNames, &r.LegacyNames},
		{ItemValue, &r.Value},
		{LegacyName, &r.LegacyName},
	}
}

type TypeRecord struct {
	Name     string           `json:"name"`
	Flags    Opt[EntityFlags] `json:"flags,omitzero"`
	Category Opt[string]      `json:"category,omitzero"`
}

func (*TypeRecord) EntityType() string { return TypeType }

func (r *TypeRecord) slots() []slot {
	return []slot{
		{TypeName, &r.Name},
		{Flags, &r.Flags},
		{TypeCat, &r.Category},
	}
}

// declares reports whether rows of typ carry f.
func declares(typ string, f Field) bool {
	if f == Flags {
		return true
	}
	for _, d := range TypeFields[typ] {
		if d == f {
			return true
		}
	}
	// Member types unknown to TypeFields still carry their names.
	if _, known := TypeFields[typ]; !known {
		return f == ClassName || f == MemberName
	}
	return false
}

func newRecord(typ string) Record {
	switch typ {
	case TypeClass:
		return &ClassRecord{}
	case TypeEnum:
		return &EnumRecord{}
	case TypeEnumItem:
		return &EnumItemRecord{}
	case TypeType:
		return &TypeRecord{}
	}
	return &MemberRecord{Kind: typ}
}

// Record decodes the row into the record of its type.
func (r Row) Record() Record {
	typ := r.Type()
	rec := newRecord(typ)
	for _, s := range rec.slots() {
		if !declares(typ, s.f) {
			continue
		}
		v := r.Field(s.f)
		switch p := s.p.(type) {
		case *string:
			*p = v.Str()
		case *Opt[string]:
			if v.Valid() {
				*p = Some(v.Str())
			}
		case *Opt[int]:
			if v.Valid() {
				*p = Some(int(v.Bits()))
			}
		case *Opt[bool]:
			if v.Valid() {
				*p = Some(v.Bool())
			}
		case *Opt[EntityFlags]:
			if removed, ok := r.Removed(); ok {
				*p = Some(EntityFlags{Removed: removed, Tags: r.Tags()})
			}
		}
	}
	return rec
}
