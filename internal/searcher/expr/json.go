package expr

import "encoding/json"

type jsonNode struct {
	Expr     string   `json:"expr"`
	Types    []string `json:"types,omitempty"`
	Field    string   `json:"field,omitempty"`
	Method   string   `json:"method,omitempty"`
	Args     []Arg    `json:"args,omitempty"`
	Flag     string   `json:"flag,omitempty"`
	Operands []Node   `json:"operands,omitempty"`
	Operand  Node     `json:"operand,omitempty"`
}

func (n *Op) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{Expr: "op", Types: n.Types, Field: n.Field.Name, Method: n.Method.String(), Args: n.Args})
}

func (n *Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{Expr: "flag", Types: n.Types, Field: n.Field.Name, Flag: n.Tag})
}

func (n *Any) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{Expr: "any", Types: n.Types})
}

func (n *And) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{Expr: "and", Operands: n.Operands})
}

func (n *Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{Expr: "or", Operands: n.Operands})
}

func (n *Not) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonNode{Expr: "not", Operand: n.Operand})
}
