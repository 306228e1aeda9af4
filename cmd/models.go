package cmd

type ArgumentInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type FieldInfo struct {
	TypeName  string         `json:"typeName,omitempty"`
	Name      string         `json:"name"`
	Arguments []ArgumentInfo `json:"arguments,omitempty"`
	Type      string         `json:"type"`
	Input     bool           `json:"input,omitempty"`
}

type TypeInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Members  int    `json:"members"`
	Explored bool   `json:"explored"`
}

type ValueInfo struct {
	EnumName string `json:"enumName,omitempty"`
	Name     string `json:"name"`
}

type PathInfo struct {
	Path     string `json:"path"`
	Document string `json:"document,omitempty"`
}
